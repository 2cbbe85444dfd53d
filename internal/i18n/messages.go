// Package i18n resolves the visitor locale and holds the checkout messages
// shown in the storefront toasts.
package i18n

import (
	"strings"

	"golang.org/x/text/language"
)

const (
	KeyIntentFailed = "payment.intent_failed"
	KeyFailed       = "payment.failed"
	KeyCancelled    = "payment.cancelled"
	KeySuccess      = "payment.success"
)

// Supported locales. The first entry is the fallback.
var supported = []language.Tag{
	language.English,
	language.Chinese,
}

var matcher = language.NewMatcher(supported)

var catalogs = map[string]map[string]string{
	"en": {
		KeyIntentFailed: "We couldn't start the payment. Please try again.",
		KeyFailed:       "Payment failed. Please try again or use another payment method.",
		KeyCancelled:    "Payment cancelled.",
		KeySuccess:      "Payment successful! Redirecting to your order...",
	},
	"zh": {
		KeyIntentFailed: "无法发起付款，请稍后再试。",
		KeyFailed:       "付款失败，请重试或改用其他付款方式。",
		KeyCancelled:    "付款已取消。",
		KeySuccess:      "付款成功！正在跳转到您的订单……",
	},
}

// Resolve picks "en" or "zh" from an explicit ?lang= value and an
// Accept-Language header. The explicit value wins when it parses.
func Resolve(explicit, acceptLanguage string) string {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		if tag, err := language.Parse(explicit); err == nil {
			return base(tag)
		}
	}
	if acceptLanguage == "" {
		return "en"
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return "en"
	}
	return base(pick(tags...))
}

func pick(tags ...language.Tag) language.Tag {
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return supported[0]
	}
	return supported[idx]
}

func base(tag language.Tag) string {
	b, _ := pick(tag).Base()
	return b.String()
}

// Message returns the message for key in locale, falling back to English and
// then to the key itself.
func Message(locale, key string) string {
	if msgs, ok := catalogs[locale]; ok {
		if m, ok := msgs[key]; ok {
			return m
		}
	}
	if m, ok := catalogs["en"][key]; ok {
		return m
	}
	return key
}
