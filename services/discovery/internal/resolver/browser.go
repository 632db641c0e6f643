package resolver

import (
	"fmt"
	"os"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

const profileDirPrefix = "soundgraph_profile_"

// NewBrowser sobe um Chromium com diretório de perfil temporário. O diretório
// devolvido deve ser removido pelo chamador; o sweeper limpa os que sobram de crashes.
func NewBrowser(headless bool) (*rod.Browser, string, error) {
	dir, err := os.MkdirTemp("", profileDirPrefix)
	if err != nil {
		return nil, "", fmt.Errorf("erro ao criar diretório de perfil: %w", err)
	}

	path, _ := launcher.LookPath()
	l := launcher.New().
		Bin(path).
		UserDataDir(dir).
		Leakless(false).
		Set("disable-gpu").
		Set("no-sandbox")

	if headless {
		l = l.Set("headless", "new")
	} else {
		l = l.Headless(false)
	}

	u, err := l.Launch()
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, "", fmt.Errorf("erro ao iniciar browser: %w", err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		_ = os.RemoveAll(dir)
		return nil, "", fmt.Errorf("erro ao conectar no browser: %w", err)
	}
	return browser, dir, nil
}
