package player

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/glebovdev/webradio/internal/decoder"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

const (
	ReadTimeout     = 5 * time.Second
	NetworkReadSize = 4096
)

// ErrStreamEnded is returned by Stream when the server closed the connection.
var ErrStreamEnded = errors.New("stream ended unexpectedly")

// Callbacks are invoked synchronously on the goroutine running Stream.
// Returning an error from either one aborts the stream with that error.
type Callbacks struct {
	OnHeader func(h http.Header) error
	OnBody   func(p []byte) error
}

// Transport delivers a continuous stream body. Stream blocks until the stream
// ends, fails or ctx is cancelled; it never returns nil.
type Transport interface {
	Stream(ctx context.Context, url string, cb Callbacks) error
}

type httpStatusError struct {
	StatusCode int
	Status     string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("stream returned status %d: %s", e.StatusCode, e.Status)
}

// isNonRetryableError reports errors that will not go away by reconnecting
// to the same URL.
func isNonRetryableError(err error) bool {
	if errors.Is(err, decoder.ErrUnsupported) || errors.Is(err, errCodecChanged) {
		return true
	}
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case 401, 403, 404, 410:
			return true
		}
	}
	return false
}

// Relies on context cancellation to clean up the spawned read goroutine.
type contextReader struct {
	reader  io.Reader
	ctx     context.Context
	timeout time.Duration
}

func (cr *contextReader) Read(p []byte) (n int, err error) {
	select {
	case <-cr.ctx.Done():
		return 0, cr.ctx.Err()
	default:
	}

	timer := time.NewTimer(cr.timeout)
	defer timer.Stop()

	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)

	go func() {
		n, err := cr.reader.Read(p)
		select {
		case done <- result{n, err}:
		case <-cr.ctx.Done():
		}
	}()

	select {
	case res := <-done:
		return res.n, res.err
	case <-timer.C:
		return 0, fmt.Errorf("read timeout: no data received for %v", cr.timeout)
	case <-cr.ctx.Done():
		return 0, cr.ctx.Err()
	}
}

// HTTPTransport fetches streams over HTTP(S), asking for ICY metadata.
type HTTPTransport struct {
	client      *resty.Client
	readTimeout time.Duration
	chunkSize   int
}

func NewHTTPTransport(userAgent string, chunkSize int) *HTTPTransport {
	httpClient := &http.Client{
		Timeout: 0, // streams are long-lived
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout: 10 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 15 * time.Second,
			MaxIdleConns:          10,
			IdleConnTimeout:       90 * time.Second,
			DisableCompression:    true,
		},
	}

	if chunkSize <= 0 {
		chunkSize = NetworkReadSize
	}

	client := resty.NewWithClient(httpClient).
		SetHeader("User-Agent", userAgent).
		SetHeader("Icy-MetaData", "1").
		SetDoNotParseResponse(true)

	return &HTTPTransport{
		client:      client,
		readTimeout: ReadTimeout,
		chunkSize:   chunkSize,
	}
}

func (t *HTTPTransport) Stream(ctx context.Context, url string, cb Callbacks) error {
	log.Debug().Msgf("Connecting to stream: %s", url)

	resp, err := t.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	body := resp.RawBody()
	if body == nil {
		return fmt.Errorf("empty response from %s", url)
	}
	defer body.Close()

	log.Debug().Msgf("Stream response status: %d, Content-Type: %s", resp.StatusCode(), resp.Header().Get("Content-Type"))

	if resp.StatusCode() != http.StatusOK {
		return &httpStatusError{StatusCode: resp.StatusCode(), Status: resp.Status()}
	}

	if cb.OnHeader != nil {
		if err := cb.OnHeader(resp.Header()); err != nil {
			return err
		}
	}

	reader := &contextReader{reader: body, ctx: ctx, timeout: t.readTimeout}
	buf := make([]byte, t.chunkSize)

	for {
		n, err := reader.Read(buf)
		if n > 0 && cb.OnBody != nil {
			if cbErr := cb.OnBody(buf[:n]); cbErr != nil {
				return cbErr
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return ErrStreamEnded
			}
			return fmt.Errorf("network read error: %w", err)
		}
	}
}
