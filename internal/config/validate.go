package config

import (
	"fmt"
	"net/url"
	"strings"
)

// maxRetriesLimit caps swap.max_retries; beyond it the user has long given
// up watching the progress window.
const maxRetriesLimit = 100

var validLevels = map[string]bool{
	"":        true,
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

// ValidationError represents an Updatefile validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the Updatefile for required fields and valid values.
func Validate(u *Updatefile) error {
	var errors []string

	for _, err := range validateFeed(u.Feed) {
		errors = append(errors, err.Error())
	}
	for _, err := range validateDownload(u.Download) {
		errors = append(errors, err.Error())
	}
	for _, err := range validateSwap(u.Swap) {
		errors = append(errors, err.Error())
	}
	if u.Host.CheckDelay < 0 {
		errors = append(errors, ValidationError{Field: "host.check_delay", Message: "must not be negative"}.Error())
	}
	for _, err := range validateLog(u.Log) {
		errors = append(errors, err.Error())
	}

	if len(errors) > 0 {
		return fmt.Errorf("validation errors:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

func validateFeed(f FeedConfig) []error {
	var errs []error

	if f.URL != "" {
		if err := validateHTTPURL(f.URL); err != nil {
			errs = append(errs, ValidationError{Field: "feed.url", Message: err.Error()})
		}
	} else {
		if err := validateHTTPURL(f.BaseURL); err != nil {
			errs = append(errs, ValidationError{Field: "feed.base_url", Message: err.Error()})
		}
		if f.Owner == "" {
			errs = append(errs, ValidationError{Field: "feed.owner", Message: "owner is required when feed.url is not set"})
		}
		if f.Repo == "" {
			errs = append(errs, ValidationError{Field: "feed.repo", Message: "repo is required when feed.url is not set"})
		}
	}

	if f.Timeout <= 0 {
		errs = append(errs, ValidationError{Field: "feed.timeout", Message: "must be positive"})
	}

	return errs
}

func validateDownload(d DownloadConfig) []error {
	var errs []error
	if d.Timeout <= 0 {
		errs = append(errs, ValidationError{Field: "download.timeout", Message: "must be positive"})
	}
	if d.SizeSlack < 0 {
		errs = append(errs, ValidationError{Field: "download.size_slack", Message: "must not be negative"})
	}
	return errs
}

func validateSwap(s SwapConfig) []error {
	var errs []error
	if s.MaxRetries < 1 || s.MaxRetries > maxRetriesLimit {
		errs = append(errs, ValidationError{
			Field:   "swap.max_retries",
			Message: fmt.Sprintf("must be between 1 and %d, got %d", maxRetriesLimit, s.MaxRetries),
		})
	}
	if s.RetryDelay < 0 {
		errs = append(errs, ValidationError{Field: "swap.retry_delay", Message: "must not be negative"})
	}
	if s.SettleDelay < 0 {
		errs = append(errs, ValidationError{Field: "swap.settle_delay", Message: "must not be negative"})
	}
	return errs
}

func validateLog(l LogConfig) []error {
	var errs []error
	if !validLevels[l.Level] {
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("invalid level '%s' (must be debug, info, warn or error)", l.Level),
		})
	}
	if l.Keep < 0 {
		errs = append(errs, ValidationError{Field: "log.keep", Message: "must not be negative"})
	}
	return errs
}

func validateHTTPURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url '%s'", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url must use http or https, got '%s'", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("url has no host: '%s'", raw)
	}
	return nil
}
