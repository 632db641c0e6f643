// Package captcha detecta páginas de desafio anti-bot em abas do browser.
package captcha

import (
	"strings"

	"github.com/go-rod/rod"
)

var challengeURLKeywords = []string{
	"captcha-delivery.com",
	"captcha",
	"/challenge",
	"verify",
}

var challengeSelectors = []string{
	`iframe[src*="captcha-delivery.com"]`,
	`iframe[src*="captcha"]`,
	"#ddChallengeBody",
	"[class*='captcha']",
	"[id*='captcha']",
}

// IsChallengeURL diz se a URL pertence a uma página de desafio.
func IsChallengeURL(u string) bool {
	u = strings.ToLower(u)
	for _, kw := range challengeURLKeywords {
		if strings.Contains(u, kw) {
			return true
		}
	}
	return false
}

// IsCaptchaPresent verifica se a aba caiu num desafio (DataDome ou captcha genérico).
// Usa Has para não esperar pelos seletores ausentes.
func IsCaptchaPresent(page *rod.Page) bool {
	if info, err := page.Info(); err == nil && info != nil && IsChallengeURL(info.URL) {
		return true
	}
	for _, sel := range challengeSelectors {
		if has, _, err := page.Has(sel); err == nil && has {
			return true
		}
	}
	return false
}
