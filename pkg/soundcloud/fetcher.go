package soundcloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	// noProgressLimit encerra a paginação após k iterações seguidas sem item novo.
	noProgressLimit = 10

	serverErrorBackoff = 10 * time.Second
	badGatewayBackoff  = 20 * time.Second

	defaultWait    = 2 * time.Second
	defaultTimeout = 30 * time.Second
	maxBodyBytes   = 32 << 20
)

// Sleeper espera d ou até ctx ser cancelado.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext é o Sleeper padrão.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type Options struct {
	ClientID  string
	Endpoints Endpoints
	// Wait é a base do intervalo entre páginas (jitter de ±50%).
	Wait       time.Duration
	Timeout    time.Duration
	HTTPClient *http.Client
	// Limiter é opcional e pode ser compartilhado entre Clients.
	Limiter   *rate.Limiter
	Sleep     Sleeper
	UserAgent string
}

// Client é o fetcher paginado. Não compartilhe um Client entre workers.
type Client struct {
	clientID  string
	endpoints Endpoints
	wait      time.Duration
	http      *http.Client
	limiter   *rate.Limiter
	sleep     Sleeper
	userAgent string
}

func NewClient(opts Options) (*Client, error) {
	if opts.ClientID == "" {
		return nil, ErrCredential
	}
	if opts.Endpoints.V1 == "" {
		opts.Endpoints.V1 = DefaultBaseV1
	}
	if opts.Endpoints.V2 == "" {
		opts.Endpoints.V2 = DefaultBaseV2
	}
	if opts.Wait < 0 {
		opts.Wait = 0
	} else if opts.Wait == 0 {
		opts.Wait = defaultWait
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Sleep == nil {
		opts.Sleep = SleepContext
	}
	return &Client{
		clientID:  opts.ClientID,
		endpoints: opts.Endpoints,
		wait:      opts.Wait,
		http:      hc,
		limiter:   opts.Limiter,
		sleep:     opts.Sleep,
		userAgent: opts.UserAgent,
	}, nil
}

func (c *Client) Endpoints() Endpoints { return c.endpoints }

// Call configura uma chamada FetchAll.
type Call struct {
	// Pages limita as páginas com sucesso; 1 = só a primeira. Zero = sem limite.
	Pages int
	// CallLimit limita as requisições, incluindo retentativas. Zero = sem limite.
	CallLimit int
	// Key extrai a identidade de cada item. Padrão: IDKey.
	Key KeyFunc
}

// Page é o envelope de toda resposta paginada.
type Page struct {
	Collection []json.RawMessage `json:"collection"`
	NextHref   *string           `json:"next_href"`
}

// FetchAll percorre a paginação a partir de endpoint e devolve os itens
// deduplicados por identidade, na ordem em que apareceram.
func (c *Client) FetchAll(ctx context.Context, endpoint string, call Call) ([]json.RawMessage, error) {
	key := call.Key
	if key == nil {
		key = IDKey
	}

	target := c.authorize(endpoint)
	seen := make(map[string]struct{})
	var items []json.RawMessage
	calls, pages, stale := 0, 0, 0
	// lastErr guarda a última falha; netErr só a de transporte da iteração corrente.
	var lastErr, netErr error

	for {
		status, body, err := c.get(ctx, target)
		calls++
		added := 0
		netErr = nil

		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			netErr = transportCause(err)
			lastErr = netErr
			log.Warn().Err(netErr).Str("url", redact(target)).Msg("[Fetcher] erro de transporte, tentando de novo")
			if err := c.backoff(ctx, serverErrorBackoff, 0.8, 1.2); err != nil {
				return nil, err
			}

		case status == http.StatusOK:
			var page Page
			if err := json.Unmarshal(body, &page); err != nil {
				return nil, fmt.Errorf("%w: página ilegível em %s: %v", ErrSchema, redact(target), err)
			}
			for _, raw := range page.Collection {
				k, err := key(raw)
				if err != nil {
					return nil, fmt.Errorf("%w: %s: %v", ErrSchema, redact(target), err)
				}
				if _, dup := seen[k]; dup {
					continue
				}
				seen[k] = struct{}{}
				items = append(items, raw)
				added++
			}
			pages++

			if page.NextHref == nil || *page.NextHref == "" || (call.Pages > 0 && pages >= call.Pages) {
				return items, nil
			}
			target = c.authorize(*page.NextHref)
			if err := c.backoff(ctx, c.wait, 0.5, 1.5); err != nil {
				return nil, err
			}

		case status == http.StatusInternalServerError:
			lastErr = fmt.Errorf("status %d", status)
			log.Warn().Int("status", status).Str("url", redact(target)).Msg("[Fetcher] erro transitório")
			if err := c.backoff(ctx, serverErrorBackoff, 0.8, 1.2); err != nil {
				return nil, err
			}

		case status == http.StatusBadGateway:
			lastErr = fmt.Errorf("status %d", status)
			log.Warn().Int("status", status).Str("url", redact(target)).Msg("[Fetcher] erro transitório")
			if err := c.backoff(ctx, badGatewayBackoff, 0.5, 1.5); err != nil {
				return nil, err
			}

		default:
			return nil, &StatusError{Code: status, URL: redact(target)}
		}

		if added == 0 {
			stale++
		} else {
			stale = 0
		}
		limited := call.CallLimit > 0 && calls >= call.CallLimit
		if !limited && stale < noProgressLimit {
			continue
		}
		// Sair sem nenhuma página 200, ou com a rede caída, não é resultado vazio.
		if pages == 0 || netErr != nil {
			return nil, fmt.Errorf("%w: %s após %d chamadas: %v", ErrUnavailable, redact(target), calls, lastErr)
		}
		if limited {
			log.Debug().Int("calls", calls).Str("url", redact(endpoint)).Msg("[Fetcher] limite de chamadas atingido")
		} else {
			log.Warn().Int("items", len(items)).Str("url", redact(endpoint)).Msg("[Fetcher] paginação sem progresso, encerrando")
		}
		return items, nil
	}
}

// transportCause descarta o *url.Error, cuja mensagem carrega a URL com o client_id.
func transportCause(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return ue.Err
	}
	return err
}

// maxFetchOneAttempts limita as retentativas transitórias de FetchOne, que
// não tem guard de progresso.
const maxFetchOneAttempts = 10

// FetchOne busca um único documento, sem paginação.
func (c *Client) FetchOne(ctx context.Context, endpoint string) (json.RawMessage, error) {
	target := c.authorize(endpoint)
	for attempt := 1; ; attempt++ {
		status, body, err := c.get(ctx, target)
		if err == nil && status == http.StatusOK {
			if !json.Valid(body) {
				return nil, fmt.Errorf("%w: corpo inválido em %s", ErrSchema, redact(target))
			}
			return body, nil
		}
		if err == nil && status != http.StatusInternalServerError && status != http.StatusBadGateway {
			return nil, &StatusError{Code: status, URL: redact(target)}
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt >= maxFetchOneAttempts {
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, redact(target), transportCause(err))
			}
			return nil, &StatusError{Code: status, URL: redact(target)}
		}
		if err != nil {
			err = transportCause(err)
		}
		log.Warn().Err(err).Int("status", status).Int("attempt", attempt).Str("url", redact(target)).Msg("[Fetcher] erro transitório")
		if status == http.StatusBadGateway {
			err = c.backoff(ctx, badGatewayBackoff, 0.5, 1.5)
		} else {
			err = c.backoff(ctx, serverErrorBackoff, 0.8, 1.2)
		}
		if err != nil {
			return nil, err
		}
	}
}

func (c *Client) get(ctx context.Context, target string) (int, []byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

// authorize garante o client_id na query. O next_href da v2 às vezes vem sem ele.
func (c *Client) authorize(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	if q.Get("client_id") != "" {
		return raw
	}
	q.Set("client_id", c.clientID)
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *Client) backoff(ctx context.Context, base time.Duration, lo, hi float64) error {
	return c.sleep(ctx, jitter(base, lo, hi))
}

func jitter(base time.Duration, lo, hi float64) time.Duration {
	return time.Duration(float64(base) * (lo + rand.Float64()*(hi-lo)))
}

func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	if q.Has("client_id") {
		q.Set("client_id", "***")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
