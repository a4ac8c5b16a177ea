package model

type CheckInStatus string

const (
	StatusSuccess         CheckInStatus = "success"
	StatusAlreadySignedIn CheckInStatus = "already_signed_in"
	// StatusAmbiguous：点击没有报错也没有任何反面信号，但拿不到确认回包。
	// 按策略计为成功，单独留一个状态值方便区分“确认成功”和“推定成功”。
	StatusAmbiguous CheckInStatus = "verification_ambiguous"
	StatusFailed    CheckInStatus = "failed"
)

type CheckInOutcome struct {
	Status CheckInStatus `json:"status"`
	Reason string        `json:"reason,omitempty"`
}

// OK 表示这次签到对调用方来说算成功（含“今日已签”和推定成功）。
func (o CheckInOutcome) OK() bool {
	return o.Status != StatusFailed
}

func Succeeded(reason string) CheckInOutcome {
	return CheckInOutcome{Status: StatusSuccess, Reason: reason}
}

func AlreadySigned() CheckInOutcome {
	return CheckInOutcome{Status: StatusAlreadySignedIn, Reason: "already signed in today"}
}

func Ambiguous(reason string) CheckInOutcome {
	return CheckInOutcome{Status: StatusAmbiguous, Reason: reason}
}

func Failure(reason string) CheckInOutcome {
	return CheckInOutcome{Status: StatusFailed, Reason: reason}
}
