// Package resolver descobre o id interno de um perfil abrindo a página pública
// num browser e observando as chamadas que o próprio cliente faz à API.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/rs/zerolog/log"

	"github.com/loviiin/soundgraph/pkg/captcha"
	"github.com/loviiin/soundgraph/pkg/soundcloud"
)

var (
	ErrNotResolved = errors.New("resolver: nenhuma chamada de usuário observada")
	ErrChallenge   = errors.New("resolver: página de desafio anti-bot")
)

const (
	defaultTimeout = 30 * time.Second
	// tempo para as chamadas XHR da página terminarem depois do load
	defaultSettle = 4 * time.Second
)

type Options struct {
	Headless bool
	Timeout  time.Duration
	Settle   time.Duration
	Cache    *Cache
}

type Resolver struct {
	browser *rod.Browser
	dir     string
	cache   *Cache
	timeout time.Duration
	settle  time.Duration
}

func New(opts Options) (*Resolver, error) {
	browser, dir, err := NewBrowser(opts.Headless)
	if err != nil {
		return nil, err
	}
	r := &Resolver{
		browser: browser,
		dir:     dir,
		cache:   opts.Cache,
		timeout: opts.Timeout,
		settle:  opts.Settle,
	}
	if r.timeout <= 0 {
		r.timeout = defaultTimeout
	}
	if r.settle <= 0 {
		r.settle = defaultSettle
	}
	return r, nil
}

// ResolveInternalID consulta o cache e, se preciso, carrega a página do perfil.
func (r *Resolver) ResolveInternalID(ctx context.Context, profileURL string) (int64, error) {
	permalink := soundcloud.HandleFromURL(profileURL)
	if r.cache != nil && permalink != "" {
		id, ok, err := r.cache.Get(ctx, permalink)
		if err != nil {
			log.Warn().Err(err).Str("permalink", permalink).Msg("[Resolver] cache indisponível")
		} else if ok {
			return id, nil
		}
	}

	ids, err := r.observe(ctx, profileURL)
	if err != nil {
		return 0, err
	}
	id, ok := MostFrequent(ids)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNotResolved, profileURL)
	}
	log.Debug().Str("permalink", permalink).Int64("user_id", id).Int("calls", len(ids)).Msg("[Resolver] id resolvido")

	if r.cache != nil && permalink != "" {
		if err := r.cache.Set(ctx, permalink, id); err != nil {
			log.Warn().Err(err).Str("permalink", permalink).Msg("[Resolver] falha ao gravar cache")
		}
	}
	return id, nil
}

func (r *Resolver) observe(ctx context.Context, profileURL string) ([]int64, error) {
	page, err := stealth.Page(r.browser)
	if err != nil {
		return nil, fmt.Errorf("erro ao abrir aba: %w", err)
	}
	defer page.Close()
	page = page.Context(ctx)

	var (
		mu  sync.Mutex
		ids []int64
	)
	router := page.HijackRequests()
	router.MustAdd("*"+apiHost+"/users/*", func(h *rod.Hijack) {
		if id, ok := UserIDFromAPIURL(h.Request.URL().String()); ok {
			mu.Lock()
			ids = append(ids, id)
			mu.Unlock()
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})
	go router.Run()
	defer func() { _ = router.Stop() }()

	if err := page.Timeout(r.timeout).Navigate(profileURL); err != nil {
		return nil, fmt.Errorf("erro de navegação: %w", err)
	}
	_ = page.Timeout(r.timeout).WaitLoad()

	if captcha.IsCaptchaPresent(page) {
		return nil, fmt.Errorf("%w: %s", ErrChallenge, profileURL)
	}

	select {
	case <-time.After(r.settle):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	mu.Lock()
	defer mu.Unlock()
	return slices.Clone(ids), nil
}

func (r *Resolver) Close() error {
	err := r.browser.Close()
	if rmErr := os.RemoveAll(r.dir); rmErr != nil && err == nil {
		err = rmErr
	}
	return err
}
