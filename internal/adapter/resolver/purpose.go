package resolver

import "strings"

type purposeRule struct {
	label    string
	keywords []string
}

// purposes is checked in order; the first keyword found in any literal path
// segment decides the label.
var purposes = []purposeRule{
	{"auth", []string{"auth", "login", "logout", "oauth", "token", "session", "signin", "signup", "register"}},
	{"payment", []string{"payment", "pay", "billing", "invoice", "checkout", "charge", "refund", "transaction"}},
	{"order", []string{"order", "cart", "basket"}},
	{"notification", []string{"notification", "notify", "email", "sms", "push", "webhook"}},
	{"search", []string{"search", "query", "suggest"}},
	{"file", []string{"upload", "download", "file", "media", "image"}},
	{"admin", []string{"admin"}},
	{"health", []string{"health", "status", "metrics", "ping", "ready", "live"}},
	{"user", []string{"user", "account", "profile", "member", "customer"}},
}

// Purpose returns a coarse classification of what an endpoint path is for,
// or "" when no keyword matches.
func Purpose(path string) string {
	segs := strings.Split(strings.ToLower(path), "/")
	for _, rule := range purposes {
		for _, seg := range segs {
			if seg == "" || IsParamSegment(seg) {
				continue
			}
			for _, kw := range rule.keywords {
				if seg == kw || strings.HasPrefix(seg, kw) {
					return rule.label
				}
			}
		}
	}
	return ""
}

// EdgeLabel renders the label of an edge to an endpoint.
func EdgeLabel(method, path string, withPurpose bool) string {
	label := method + " " + path
	if !withPurpose {
		return label
	}
	if p := Purpose(path); p != "" {
		return "[" + p + "] " + label
	}
	return label
}
