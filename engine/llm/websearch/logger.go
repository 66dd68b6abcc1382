package websearch

import (
	"fmt"

	"github.com/go-resty/resty/v2"

	"github.com/compozy/molrag/pkg/logger"
)

const redacted = "[REDACTED]"

var credentialHeaders = []string{"Authorization", "OpenAI-Organization", "Proxy-Authorization"}

// restyLogger sends resty's request dumps and warnings to the structured logger.
type restyLogger struct {
	log logger.Logger
}

func newRestyLogger(log logger.Logger) *restyLogger {
	if log == nil {
		log = logger.GetDefault()
	}
	return &restyLogger{log: log.With("component", "websearch")}
}

func (r *restyLogger) Errorf(format string, v ...any) {
	r.log.Error(fmt.Sprintf(format, v...))
}

func (r *restyLogger) Warnf(format string, v ...any) {
	r.log.Warn(fmt.Sprintf(format, v...))
}

func (r *restyLogger) Debugf(format string, v ...any) {
	r.log.Debug(fmt.Sprintf(format, v...))
}

// maskCredentials runs on the copy of the headers resty prints, never on the
// request that goes out.
func maskCredentials(rl *resty.RequestLog) error {
	for _, h := range credentialHeaders {
		if rl.Header.Get(h) != "" {
			rl.Header.Set(h, redacted)
		}
	}
	return nil
}
