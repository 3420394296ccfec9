package hal

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/tarm/serial"

	"github.com/nasa-jpl/tinyg/util"
)

// defaultReadTimeoutSecs is how long a ReadLine waits for a terminator before
// giving up, expressed in seconds the way a human-edited config value
// would be, then converted once at construction time.
const defaultReadTimeoutSecs = 3.0

// ErrNotConnected is returned by WriteLine/ReadLine when the serial port has
// not been opened yet.
var ErrNotConnected = errors.New("serial line not open")

// ErrTerminatorNotFound is returned when a read's buffer was exhausted
// without finding any of the accepted line terminators.
var ErrTerminatorNotFound = errors.New("line terminator not found")

// LineSource is the command-stream side of the hardware boundary (spec
// section 6): ASCII lines terminated by LF, CR, or ';', read off a serial
// port. Grounded directly on comm.RemoteDevice's Open/Send/Recv shape,
// narrowed to the serial-only, line-terminator-set case this spec needs.
type LineSource struct {
	mu sync.Mutex

	portName string
	baud     int
	timeout  time.Duration

	conn   *serial.Port
	reader *bufio.Reader
}

// NewLineSource returns a LineSource that will open portName at baud when
// Open is called.
func NewLineSource(portName string, baud int) *LineSource {
	return &LineSource{
		portName: portName,
		baud:     baud,
		timeout:  util.SecsToDuration(defaultReadTimeoutSecs),
	}
}

// SetReadTimeout overrides the default read timeout, given in seconds as
// a human-edited config value would express it. Must be called before
// Open; the serial port's ReadTimeout is fixed for the life of the
// connection.
func (l *LineSource) SetReadTimeout(secs float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.timeout = util.SecsToDuration(secs)
}

// Open establishes the serial connection, retrying with exponential
// backoff the way comm.RemoteDevice.Open guards against a flaky
// USB-serial adapter refusing the first few opens after a power cycle.
func (l *LineSource) Open() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn != nil {
		return nil
	}

	var refused bool
	op := func() error {
		cfg := &serial.Config{Name: l.portName, Baud: l.baud, ReadTimeout: l.timeout}
		conn, err := serial.OpenPort(cfg)
		if err != nil {
			if strings.Contains(strings.ToLower(err.Error()), "refused") {
				refused = true
				return err
			}
			return err
		}
		l.conn = conn
		l.reader = bufio.NewReader(conn)
		return nil
	}

	err := backoff.Retry(op, &backoff.ExponentialBackOff{
		InitialInterval:     25 * time.Millisecond,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         1 * time.Second,
		MaxElapsedTime:      3 * time.Second,
		Clock:               backoff.SystemClock,
	})
	if err == nil {
		return nil
	}
	if refused {
		return fmt.Errorf("serial port %s refused connection: %w", l.portName, err)
	}
	return fmt.Errorf("opening serial port %s: %w", l.portName, err)
}

// Close closes the underlying serial connection.
func (l *LineSource) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return nil
	}
	err := l.conn.Close()
	l.conn = nil
	l.reader = nil
	return err
}

// ReadLine reads up to the next LF, CR, or ';' terminator and returns the
// line with the terminator stripped. It does not block indefinitely: the
// underlying port's ReadTimeout bounds each call, so a caller running
// inside the cooperative scheduler can treat a timeout as "no complete
// line yet" (status.NOOP) rather than hanging a background task.
func (l *LineSource) ReadLine() ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil || l.reader == nil {
		return nil, ErrNotConnected
	}

	var buf []byte
	for {
		b, err := l.reader.ReadByte()
		if err != nil {
			if len(buf) > 0 {
				return buf, ErrTerminatorNotFound
			}
			return nil, err
		}
		if b == '\n' || b == '\r' || b == ';' {
			if len(buf) == 0 {
				continue // swallow stray terminators / blank lines
			}
			return buf, nil
		}
		buf = append(buf, b)
	}
}

// WriteLine writes p followed by a trailing LF, the conventional
// host-to-device line terminator for this dialect (spec section 6).
func (l *LineSource) WriteLine(p []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return ErrNotConnected
	}
	out := append(bytes.TrimRight(p, "\r\n"), '\n')
	_, err := l.conn.Write(out)
	return err
}
