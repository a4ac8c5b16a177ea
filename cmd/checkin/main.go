package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"checkin_engine/internal/browser"
	"checkin_engine/internal/config"
	"checkin_engine/internal/logbus"
	"checkin_engine/internal/notify"
	"checkin_engine/internal/probe"
	"checkin_engine/internal/runner"
	"checkin_engine/internal/store/sqlite"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "./config.yaml", "path to config.yaml")
	daemon := flag.Bool("daemon", false, "run on the configured cron schedule instead of once")
	history := flag.Int("history", 0, "print the last N run records and exit")
	flag.Parse()

	// .env 里的 CHECKIN_ACCOUNTS 等变量先于配置加载。
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Printf("load config: %v", err)
		return 1
	}

	bus := logbus.New()
	defer bus.Close()
	logCh, cancelLogs := bus.Subscribe(128)
	defer cancelLogs()
	go func() {
		for msg := range logCh {
			data, ok := msg.Data.(logbus.LogData)
			if !ok {
				continue
			}
			if len(data.Fields) > 0 {
				log.Printf("[%s] %s %v", data.Level, data.Msg, data.Fields)
			} else {
				log.Printf("[%s] %s", data.Level, data.Msg)
			}
		}
	}()

	ctx := context.Background()
	store, err := sqlite.Open(ctx, cfg.Storage.SQLitePath)
	if err != nil {
		log.Printf("open sqlite: %v", err)
		return 1
	}
	defer store.Close()

	if *history > 0 {
		return printHistory(ctx, store, *history)
	}

	accounts := cfg.Accounts
	envAccounts, err := config.LoadAccountsFromEnv()
	if err != nil {
		log.Printf("%v", err)
		return 1
	}
	if len(envAccounts) > 0 {
		accounts = envAccounts
	}

	var notifier notify.Notifier = notify.NewBusNotifier(bus)
	if cfg.Notify.Email.Enabled {
		notifier = notify.NewEmailNotifier(cfg.Notify.Email, bus)
	}

	coord := runner.New(runner.Options{
		Session:  browser.New(cfg.Browser, bus),
		Probe:    probe.New(cfg.Probe, bus),
		Store:    store,
		Notifier: notifier,
		Bus:      bus,
		Title:    cfg.Notify.Title,
	})
	providers := cfg.ProviderMap()

	if !*daemon && !cfg.Daemon.Enabled {
		return coord.Execute(ctx, accounts, providers)
	}

	// 定时模式：按 cron 表达式周期执行，直到收到退出信号。
	// 单轮的退出码只记日志，进程退出码由信号路径决定。
	c := cron.New()
	if _, err := c.AddFunc(cfg.Daemon.CronSpec, func() {
		code := coord.Execute(ctx, accounts, providers)
		bus.Log("info", "定时任务完成", map[string]any{"exitCode": code})
	}); err != nil {
		log.Printf("cron spec %q: %v", cfg.Daemon.CronSpec, err)
		return 1
	}
	c.Start()
	bus.Log("info", "定时签到已启动", map[string]any{"cron": cfg.Daemon.CronSpec})

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	sig := <-stop
	bus.Log("info", "收到退出信号", map[string]any{"signal": sig.String()})

	<-c.Stop().Done()
	return 0
}

func printHistory(ctx context.Context, store *sqlite.Store, limit int) int {
	runs, err := store.RecentRuns(ctx, limit)
	if err != nil {
		log.Printf("list runs: %v", err)
		return 1
	}
	for _, rec := range runs {
		notified := ""
		if rec.Notified {
			notified = " notified"
		}
		fmt.Printf("%s  %d/%d  fp=%s%s\n",
			rec.At.Format("2006-01-02 15:04:05"), rec.SuccessCount, rec.TotalCount, rec.Fingerprint, notified)
	}
	return 0
}
