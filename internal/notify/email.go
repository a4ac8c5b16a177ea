package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/mail"
	"strings"

	"gopkg.in/gomail.v2"

	"checkin_engine/internal/config"
	"checkin_engine/internal/logbus"
)

// EmailNotifier 用 SMTP 发送运行报告。SMTP 服务器根据邮箱域名推断，
// 常见邮箱不需要额外配置。
type EmailNotifier struct {
	cfg config.EmailConfig
	bus *logbus.Bus
}

func NewEmailNotifier(cfg config.EmailConfig, bus *logbus.Bus) *EmailNotifier {
	return &EmailNotifier{cfg: cfg, bus: bus}
}

func (n *EmailNotifier) Push(ctx context.Context, title, body string) error {
	if err := validateEmailConfig(n.cfg); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	from := strings.TrimSpace(n.cfg.Address)
	to := strings.TrimSpace(n.cfg.To)
	if to == "" {
		to = from
	}

	host, port, useSSL, err := smtpConfigForEmail(from)
	if err != nil {
		return err
	}

	htmlBody, err := renderHTMLReport(title, body)
	if err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", msg.FormatAddress(from, "签到助手"))
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", title)
	msg.SetBody("text/plain", body)
	msg.AddAlternative("text/html", htmlBody)

	d := gomail.NewDialer(host, port, from, strings.TrimSpace(n.cfg.AuthCode))
	d.SSL = useSSL
	if err := d.DialAndSend(msg); err != nil {
		return err
	}

	n.bus.Log("info", "通知邮件已发送", map[string]any{"to": to})
	return nil
}

func validateEmailConfig(cfg config.EmailConfig) error {
	address := strings.TrimSpace(cfg.Address)
	if address == "" {
		return errors.New("email address is required")
	}
	if _, err := mail.ParseAddress(address); err != nil {
		return errors.New("invalid email address")
	}
	if strings.TrimSpace(cfg.AuthCode) == "" {
		return errors.New("authCode is required")
	}
	return nil
}

func smtpConfigForEmail(email string) (host string, port int, useSSL bool, err error) {
	parts := strings.Split(strings.TrimSpace(email), "@")
	if len(parts) != 2 || strings.TrimSpace(parts[1]) == "" {
		return "", 0, false, errors.New("invalid email format")
	}
	domain := strings.ToLower(strings.TrimSpace(parts[1]))

	switch {
	case domain == "qq.com" || strings.HasSuffix(domain, ".qq.com") || domain == "foxmail.com":
		return "smtp.qq.com", 465, true, nil
	case domain == "163.com" || domain == "126.com" || domain == "yeah.net":
		return "smtp.163.com", 465, true, nil
	case domain == "gmail.com":
		return "smtp.gmail.com", 587, false, nil
	case domain == "outlook.com" || domain == "hotmail.com" || domain == "live.com":
		return "smtp.office365.com", 587, false, nil
	case domain == "sina.com":
		return "smtp.sina.com", 465, true, nil
	case domain == "aliyun.com":
		return "smtp.aliyun.com", 465, true, nil
	default:
		return "smtp." + domain, 465, true, nil
	}
}

func renderHTMLReport(title, body string) (string, error) {
	blocks := strings.Split(body, "\n\n")
	data := struct {
		Title  string
		Blocks []string
	}{Title: title, Blocks: blocks}

	var buf bytes.Buffer
	if err := emailReportTpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	return buf.String(), nil
}

var emailReportTpl = template.Must(template.New("report").Parse(`
<!doctype html>
<html lang="zh-CN">
  <head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width" />
    <title>{{ .Title }}</title>
  </head>
  <body style="margin:0;padding:0;background:#f6f8fb;font-family:-apple-system,BlinkMacSystemFont,'Segoe UI',Roboto,'Helvetica Neue',Arial,'PingFang SC','Hiragino Sans GB','Microsoft YaHei',sans-serif;">
    <div style="max-width:640px;margin:0 auto;padding:24px;">
      <div style="background:#ffffff;border:1px solid #e6e8ef;border-radius:14px;overflow:hidden;">
        <div style="padding:18px 22px;background:linear-gradient(135deg,#0ea5e9,#6366f1);color:#ffffff;">
          <div style="font-size:16px;font-weight:700;letter-spacing:.2px;">{{ .Title }}</div>
          <div style="margin-top:6px;font-size:12px;opacity:.95;">签到助手通知</div>
        </div>
        <div style="padding:22px;">
          {{ range .Blocks }}
          <pre style="margin:0 0 12px 0;padding:12px 14px;background:#fafbff;border:1px solid #eef0f6;border-radius:10px;color:#111827;font-size:12px;line-height:1.7;white-space:pre-wrap;word-break:break-all;">{{ . }}</pre>
          {{ end }}
          <div style="margin-top:6px;color:#9ca3af;font-size:12px;line-height:1.6;">
            此邮件由系统自动发送
          </div>
        </div>
      </div>
      <div style="text-align:center;margin-top:12px;color:#9ca3af;font-size:12px;">
        © 签到助手
      </div>
    </div>
  </body>
</html>
`))
