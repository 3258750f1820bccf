package main

import (
	"fmt"
	"time"
)

type Config struct {
	LogLevel         string        `env:"LOG_LEVEL,required=true"`
	Host             string        `env:"HOST,default=0.0.0.0"`
	Port             int           `env:"PORT,default=3000"`
	BadgerFilepath   string        `env:"BADGER_FILEPATH,required=true"`
	SweepInterval    time.Duration `env:"SWEEP_INTERVAL,default=60s"`
	DeliveryTimeout  time.Duration `env:"DELIVERY_TIMEOUT,default=10s"`
	RestartInterval  time.Duration `env:"RESTART_INTERVAL,default=1s"`
	TelegramBotToken string        `env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   string        `env:"TELEGRAM_CHAT_ID,required=true"`
	TelegramAPIURL   string        `env:"TELEGRAM_API_URL,default=https://api.telegram.org"`
	OutboxDir        string        `env:"OUTBOX_DIR,default=./outbox"`
	NotifyOnContact  bool          `env:"NOTIFY_ON_CONTACT,default=true"`
}

func (c Config) Validate() error {
	if c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive, got %s", c.SweepInterval)
	}
	if c.DeliveryTimeout <= 0 {
		return fmt.Errorf("DELIVERY_TIMEOUT must be positive, got %s", c.DeliveryTimeout)
	}
	if c.DeliveryTimeout >= c.SweepInterval {
		return fmt.Errorf("DELIVERY_TIMEOUT (%s) must be shorter than SWEEP_INTERVAL (%s)",
			c.DeliveryTimeout, c.SweepInterval)
	}
	return nil
}
