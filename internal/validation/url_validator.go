package validation

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/veranemoloko/bulk-downloader/internal/domain"
	errpkg "github.com/veranemoloko/bulk-downloader/internal/errors"
)

var forbiddenHosts = []string{
	"localhost",
	"127.0.0.1",
	"::1",
	"0.0.0.0",
	"169.254.169.254",
}

// Validator checks download tasks using struct tags on domain.DownloadTask.
type Validator struct {
	validate          *validator.Validate
	blockPrivateHosts bool
}

// New creates a Validator. With blockPrivateHosts set, URLs pointing at
// loopback, private or metadata addresses are rejected.
func New(blockPrivateHosts bool) *Validator {
	v := &Validator{validate: validator.New(), blockPrivateHosts: blockPrivateHosts}
	_ = v.validate.RegisterValidation("download_url", v.validateDownloadURL)
	return v
}

// ValidateTask returns an error wrapping errpkg.ErrInvalidTask when t is
// missing required fields or carries an unusable URL.
func (v *Validator) ValidateTask(t domain.DownloadTask) error {
	if err := v.validate.Struct(t); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s(%s)", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", errpkg.ErrInvalidTask, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", errpkg.ErrInvalidTask, err)
	}
	return nil
}

// ValidateURL checks a single URL against the download_url rule.
func (v *Validator) ValidateURL(u string) error {
	if err := v.validate.Var(u, "required,download_url"); err != nil {
		return fmt.Errorf("%w: invalid URL %q", errpkg.ErrInvalidTask, u)
	}
	return nil
}

func (v *Validator) validateDownloadURL(fl validator.FieldLevel) bool {
	u, err := url.Parse(fl.Field().String())
	if err != nil {
		return false
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}

	if u.Host == "" {
		return false
	}

	if !v.blockPrivateHosts {
		return true
	}

	host := u.Hostname()
	for _, forbidden := range forbiddenHosts {
		if strings.EqualFold(host, forbidden) {
			return false
		}
	}

	if ip := net.ParseIP(host); ip != nil {
		if ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast() {
			return false
		}
	}

	return true
}
