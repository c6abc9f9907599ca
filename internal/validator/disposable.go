package validator

import "strings"

// disposableDomains is a curated set of domains known to provide
// temporary/throwaway mailboxes. Exact-match, case-insensitive.
var disposableDomains = map[string]struct{}{
	"10minutemail.com":    {},
	"20minutemail.com":    {},
	"33mail.com":          {},
	"anonbox.net":         {},
	"dispostable.com":     {},
	"fakeinbox.com":       {},
	"getairmail.com":      {},
	"getnada.com":         {},
	"guerrillamail.com":   {},
	"guerrillamail.net":   {},
	"guerrillamail.org":   {},
	"harakirimail.com":    {},
	"inboxkitten.com":     {},
	"maildrop.cc":         {},
	"mailinator.com":      {},
	"mailnesia.com":       {},
	"mintemail.com":       {},
	"mohmal.com":          {},
	"mytemp.email":        {},
	"sharklasers.com":     {},
	"spam4.me":            {},
	"spamgourmet.com":     {},
	"temp-mail.org":       {},
	"tempail.com":         {},
	"tempmail.com":        {},
	"tempmail.net":        {},
	"throwawaymail.com":   {},
	"trashmail.com":       {},
	"yopmail.com":         {},
	"mailcatch.com":       {},
	"emailondeck.com":     {},
	"burnermail.io":       {},
	"discard.email":       {},
	"mail-temporaire.fr":  {},
	"spambog.com":         {},
	"tempinbox.com":       {},
	"trash-mail.com":      {},
	"wegwerfmail.de":      {},
}

// roleAccounts is the set of mailbox local parts denoting a function
// rather than a person. Case-insensitive.
var roleAccounts = map[string]struct{}{
	"admin":         {},
	"administrator": {},
	"support":       {},
	"help":          {},
	"info":          {},
	"contact":       {},
	"sales":         {},
	"marketing":     {},
	"noreply":       {},
	"no-reply":      {},
	"postmaster":    {},
	"webmaster":     {},
	"hostmaster":    {},
	"abuse":         {},
	"security":      {},
	"root":          {},
}

// IsDisposableDomain reports whether a domain is a known disposable
// mailbox provider.
func IsDisposableDomain(domain string) bool {
	_, ok := disposableDomains[strings.ToLower(domain)]
	return ok
}

// IsRoleAccount reports whether a mailbox local part denotes a role
// (admin, support, ...) rather than a person.
func IsRoleAccount(localPart string) bool {
	_, ok := roleAccounts[strings.ToLower(localPart)]
	return ok
}
