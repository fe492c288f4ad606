// Package logging monta o logger zap compartilhado pelo serviço.
package logging

import (
	"strings"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New monta o logger JSON de produção no nível dado ("debug", "info",
// "warn", "error"). Nível desconhecido vira info.
func New(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

func parseLevel(level string) zapcore.Level {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(level)))); err != nil {
		return zapcore.InfoLevel
	}
	return l
}

// Component devolve um logger filho marcado com o componente, no lugar dos
// prefixos "[CRON]", "[REDIS]" dos logs antigos.
func Component(log *zap.Logger, name string) *zap.Logger {
	if log == nil {
		log = zap.NewNop()
	}
	return log.With(zap.String("component", name))
}

// cronLogger adapta o zap para a interface de log do robfig/cron.
type cronLogger struct {
	s *zap.SugaredLogger
}

// Cron devolve um cron.Logger que escreve pelo zap. Só erros e o "skip" de
// jobs ainda em execução interessam; o resto vai em debug.
func Cron(log *zap.Logger) cron.Logger {
	if log == nil {
		log = zap.NewNop()
	}
	return cronLogger{s: log.Sugar()}
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	if msg == "skip" {
		l.s.Warnw("cron job still running, tick skipped", keysAndValues...)
		return
	}
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
