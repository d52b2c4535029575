package commonlog

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/nullgate/gatewire"
	"github.com/nullgate/gatewire/modules/ipanon"
)

// Logger is the Stage writing one log line per request. Token capture is
// split across two phases the way the original writer does: immutable
// request data (client address, method, URI, referrer, user agent) is
// captured in RequestFilter before any rewrite touches the request,
// while the status is only read in Logging. Bytes sent are not
// recorded; the line always carries "-" in that field.
type Logger struct {
	gatewire.BaseStage

	Path       string
	Anonymize  bool
	writer     *Writer
}

// New builds a Logger writing to path via writer.
func New(writer *Writer, path string, anonymize bool) *Logger {
	return &Logger{Path: path, Anonymize: anonymize, writer: writer}
}

type logCtx struct {
	remoteAddr string
	method     string
	uri        string
	referrer   string
	userAgent  string
	start      time.Time
}

func (l *Logger) NewContext() any { return &logCtx{} }

func (l *Logger) RequestFilter(ctx context.Context, sess *gatewire.Session, stageCtx any) (gatewire.Result, error) {
	lc := stageCtx.(*logCtx)
	req := sess.Request()

	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		host = req.RemoteAddr
	}
	if l.Anonymize {
		host = ipanon.AnonymizeString(host)
	}

	lc.remoteAddr = host
	lc.method = req.Method
	lc.uri = sess.OriginalURI()
	lc.referrer = req.Referer()
	lc.userAgent = req.UserAgent()
	lc.start = time.Now()
	return gatewire.Unhandled, nil
}

func (l *Logger) Logging(ctx context.Context, sess *gatewire.Session, stageCtx any, handlerErr error) {
	lc, _ := stageCtx.(*logCtx)
	if lc == nil {
		return
	}

	status := sess.StatusCode()
	if status == 0 {
		status = 200
	}

	line := formatLine(lc, status)
	if l.writer != nil {
		l.writer.Write(l.Path, line)
	}
}

// formatLine renders a combined-log-format line:
// remote - - [time] "METHOD uri HTTP/1.1" status - "referrer" "user-agent"
func formatLine(lc *logCtx, status int) string {
	var b strings.Builder
	b.WriteString(escapeToken(lc.remoteAddr))
	b.WriteString(" - - [")
	b.WriteString(lc.start.Format("02/Jan/2006:15:04:05 -0700"))
	b.WriteString("] \"")
	b.WriteString(escapeToken(lc.method))
	b.WriteByte(' ')
	b.WriteString(escapeToken(lc.uri))
	b.WriteString(" HTTP/1.1\" ")
	fmt.Fprintf(&b, "%d", status)
	b.WriteString(" - \"")
	b.WriteString(escapeToken(lc.referrer))
	b.WriteString("\" \"")
	b.WriteString(escapeToken(lc.userAgent))
	b.WriteString("\"\n")
	return b.String()
}
