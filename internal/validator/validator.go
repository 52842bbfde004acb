// Package validator checks email addresses without sending mail: syntax, DNS presence of the
// domain and its mail exchangers, disposable providers, and role mailboxes.
package validator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/pitch/internal/shared"
	"golang.org/x/net/publicsuffix"
)

const (
	maxLocalLength  = 64
	maxDomainLength = 255
	lookupTimeout   = 5 * time.Second
)

// DisposableDomains are throwaway-mailbox providers.
var DisposableDomains = []string{
	"10minutemail.com", "guerrillamail.com", "mailinator.com",
	"tempmail.com", "throwaway.email", "temp-mail.org",
	"getnada.com", "mohmal.com", "fakeinbox.com",
	"trashmail.com", "yopmail.com", "maildrop.cc",
}

// RoleAccounts are local parts that reach a team or a robot rather than a person.
var RoleAccounts = []string{
	"info", "support", "help", "contact", "hello", "noreply",
	"no-reply", "donotreply", "admin", "administrator",
	"postmaster", "webmaster", "abuse", "sales", "marketing",
}

var syntaxPattern = regexp.MustCompile(`^[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}$`)

// Resolver is the DNS surface the validator needs. [*net.Resolver] satisfies it.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
}

// Options selects the optional checks.
type Options struct {
	CheckMX         bool
	CheckDisposable bool
	CheckRole       bool
}

// DefaultOptions checks MX records and disposable domains but not role accounts.
func DefaultOptions() Options {
	return Options{CheckMX: true, CheckDisposable: true}
}

// Result is the outcome of validating one address.
type Result struct {
	Email         string   `json:"email"`
	Valid         bool     `json:"valid"`
	SyntaxValid   bool     `json:"syntax_valid"`
	DomainExists  bool     `json:"domain_exists"`
	HasMX         bool     `json:"has_mx"`
	MXRecords     []string `json:"mx_records,omitempty"`
	IsDisposable  bool     `json:"is_disposable"`
	IsRoleAccount bool     `json:"is_role_account"`
	Warnings      []string `json:"warnings,omitempty"`
	Errors        []string `json:"errors,omitempty"`
}

// Domain returns the lowercased part after the "@", or "" when there is none.
func (r Result) Domain() string {
	_, domain, ok := strings.Cut(shared.NormalizeEmail(r.Email), "@")
	if !ok {
		return ""
	}
	return domain
}

type cacheKey struct {
	email string
	opts  Options
}

// Validator validates addresses and caches results per address and option set.
// It is safe for concurrent use.
type Validator struct {
	resolver Resolver
	logger   *log.Logger

	mu    sync.Mutex
	cache map[cacheKey]Result
}

// New creates a [Validator]. A nil resolver uses [net.DefaultResolver].
func New(resolver Resolver, logger *log.Logger) *Validator {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Validator{resolver: resolver, logger: logger, cache: make(map[cacheKey]Result)}
}

// CheckSyntax returns nil when email is a plausible address.
func CheckSyntax(email string) error {
	email = shared.NormalizeEmail(email)
	if email == "" {
		return fmt.Errorf("%w: email is empty", shared.ErrInvalidInput)
	}
	if !syntaxPattern.MatchString(email) {
		return fmt.Errorf("%w: invalid email format", shared.ErrInvalidInput)
	}
	if strings.HasPrefix(email, ".") || strings.HasPrefix(email, "@") {
		return fmt.Errorf("%w: email cannot start with . or @", shared.ErrInvalidInput)
	}
	if strings.Contains(email, "..") {
		return fmt.Errorf("%w: email cannot contain consecutive dots", shared.ErrInvalidInput)
	}
	if strings.Count(email, "@") != 1 {
		return fmt.Errorf("%w: email must contain exactly one @", shared.ErrInvalidInput)
	}
	local, domain, _ := strings.Cut(email, "@")
	if len(local) > maxLocalLength {
		return fmt.Errorf("%w: local part too long (max %d characters)", shared.ErrInvalidInput, maxLocalLength)
	}
	if len(domain) > maxDomainLength {
		return fmt.Errorf("%w: domain too long (max %d characters)", shared.ErrInvalidInput, maxDomainLength)
	}
	return nil
}

// DisposableDomain reports whether domain, or the registrable domain it belongs to, is a
// disposable provider, and returns the matching provider.
func DisposableDomain(domain string) (string, bool) {
	domain = strings.ToLower(strings.TrimSuffix(domain, "."))
	if slices.Contains(DisposableDomains, domain) {
		return domain, true
	}
	if etld1, err := publicsuffix.EffectiveTLDPlusOne(domain); err == nil && slices.Contains(DisposableDomains, etld1) {
		return etld1, true
	}
	return "", false
}

// RoleAccount reports whether local is a role mailbox such as "info" or "support+press".
func RoleAccount(local string) (string, bool) {
	local = strings.ToLower(local)
	for _, role := range RoleAccounts {
		if local == role || strings.HasPrefix(local, role+"+") || strings.HasPrefix(local, role+".") {
			return role, true
		}
	}
	return "", false
}

// Validate runs the selected checks against email.
//
// An address is valid when its syntax is sound, its domain resolves, it has a mail exchanger
// (when MX checks are on) and it is not disposable (when disposable checks are on). Role
// accounts only produce a warning.
func (v *Validator) Validate(ctx context.Context, email string, opts Options) Result {
	key := cacheKey{email: email, opts: opts}
	v.mu.Lock()
	if cached, ok := v.cache[key]; ok {
		v.mu.Unlock()
		return cached
	}
	v.mu.Unlock()

	result := v.validate(ctx, email, opts)

	v.mu.Lock()
	v.cache[key] = result
	v.mu.Unlock()
	return result
}

func (v *Validator) validate(ctx context.Context, email string, opts Options) Result {
	result := Result{Email: email}

	if err := CheckSyntax(email); err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result
	}
	result.SyntaxValid = true

	normalized := shared.NormalizeEmail(email)
	local, domain, _ := strings.Cut(normalized, "@")

	result.DomainExists = v.domainExists(ctx, domain)
	if !result.DomainExists {
		result.Errors = append(result.Errors, fmt.Sprintf("Domain %s does not exist", domain))
	}

	if opts.CheckMX && result.DomainExists {
		hasMX, records, warning := v.mailExchangers(ctx, domain)
		result.HasMX = hasMX
		result.MXRecords = records
		if warning != "" {
			result.Warnings = append(result.Warnings, warning)
		}
	}

	if opts.CheckDisposable {
		if provider, ok := DisposableDomain(domain); ok {
			result.IsDisposable = true
			result.Warnings = append(result.Warnings, "Disposable email domain: "+provider)
		}
	}

	if opts.CheckRole {
		if role, ok := RoleAccount(local); ok {
			result.IsRoleAccount = true
			result.Warnings = append(result.Warnings, "Role account detected: "+role+"@")
		}
	}

	result.Valid = result.SyntaxValid &&
		result.DomainExists &&
		(!opts.CheckMX || result.HasMX) &&
		(!opts.CheckDisposable || !result.IsDisposable)

	v.logger.Debug("validated", "email", email, "valid", result.Valid)
	return result
}

func (v *Validator) domainExists(ctx context.Context, domain string) bool {
	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	addrs, err := v.resolver.LookupHost(ctx, domain)
	if err != nil {
		v.logger.Debug("host lookup failed", "domain", domain, "err", err)
		return false
	}
	return len(addrs) > 0
}

// mailExchangers looks up MX records. A domain without MX records that still resolves accepts
// mail on its A record, which counts as having a mail exchanger.
func (v *Validator) mailExchangers(ctx context.Context, domain string) (bool, []string, string) {
	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	mxs, err := v.resolver.LookupMX(ctx, domain)
	if err == nil && len(mxs) > 0 {
		hosts := make([]string, 0, len(mxs))
		for _, mx := range mxs {
			hosts = append(hosts, strings.TrimSuffix(mx.Host, "."))
		}
		return true, hosts, ""
	}

	var dnsErr *net.DNSError
	if err != nil && !(errors.As(err, &dnsErr) && dnsErr.IsNotFound) {
		return false, nil, fmt.Sprintf("DNS error: %v", err)
	}

	if addrs, err := v.resolver.LookupHost(ctx, domain); err == nil && len(addrs) > 0 {
		return true, nil, "No MX record, but A record exists"
	}
	return false, nil, fmt.Sprintf("No MX or A records for %s", domain)
}

type job struct {
	index int
	email string
}

type indexed struct {
	index  int
	result Result
}

// ValidateAll validates emails with a pool of workers and returns results in input order.
// It stops early and returns the context error when ctx is cancelled.
func (v *Validator) ValidateAll(ctx context.Context, emails []string, opts Options, workers int) ([]Result, error) {
	if workers <= 0 {
		workers = 4
	}
	workers = min(workers, max(len(emails), 1))

	jobs := make(chan job)
	out := make(chan indexed, len(emails))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				out <- indexed{index: j.index, result: v.Validate(ctx, j.email, opts)}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i, email := range emails {
			select {
			case <-ctx.Done():
				return
			case jobs <- job{index: i, email: email}:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(out)
	}()

	results := make([]Result, len(emails))
	for r := range out {
		results[r.index] = r.result
	}
	if err := ctx.Err(); err != nil {
		return results, fmt.Errorf("validation interrupted: %w", err)
	}
	return results, nil
}
