package validation

import (
	"net/url"
	"path/filepath"
	"strings"

	apperrors "github.com/anime-shed/capture-inspector-go/internal/errors"
)

const reuploadGuidance = "Upload the image again."

// DefaultSchemes are the reference schemes the storage layer can fetch
var DefaultSchemes = []string{"http", "https", "azblob", "file"}

// RefValidator checks image references before any bytes are fetched.
// A bare absolute path counts as a file reference.
type RefValidator struct {
	schemes []string
	// hosts restricts http(s) references; empty allows any host
	hosts map[string]struct{}
}

// NewRefValidator accepts every scheme the storage layer supports, on any host
func NewRefValidator() *RefValidator {
	return NewRefValidatorWithOptions(DefaultSchemes, nil)
}

// NewRefValidatorWithOptions restricts references to the given schemes and hosts
func NewRefValidatorWithOptions(schemes, hosts []string) *RefValidator {
	v := &RefValidator{
		schemes: make([]string, 0, len(schemes)),
		hosts:   make(map[string]struct{}, len(hosts)),
	}
	for _, s := range schemes {
		v.schemes = append(v.schemes, strings.ToLower(s))
	}
	for _, h := range hosts {
		v.hosts[strings.ToLower(h)] = struct{}{}
	}
	return v
}

// Validate reports whether ref names an image the gate may fetch
func (v *RefValidator) Validate(ref string) error {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return apperrors.NewValidationError("URL cannot be empty", nil).
			WithGuidance("Capture or choose an image before submitting.")
	}

	if filepath.IsAbs(ref) {
		return v.requireScheme("file")
	}

	u, err := url.Parse(ref)
	if err != nil {
		return invalidRef("Invalid URL format", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if err := v.requireScheme(scheme); err != nil {
		return err
	}

	switch scheme {
	case "file":
		if u.Path == "" {
			return invalidRef("file URL must have a path", nil)
		}
	case "azblob":
		if u.Host == "" {
			return invalidRef("URL must have a valid host", nil)
		}
		if strings.Trim(u.Path, "/") == "" {
			return invalidRef("azblob URL must name a blob", nil)
		}
	default:
		if u.Host == "" {
			return invalidRef("URL must have a valid host", nil)
		}
		if u.User != nil {
			return invalidRef("URL must not embed credentials", nil)
		}
		if len(v.hosts) > 0 {
			if _, ok := v.hosts[strings.ToLower(u.Hostname())]; !ok {
				return invalidRef("URL host not allowed", nil)
			}
		}
	}
	return nil
}

func (v *RefValidator) requireScheme(scheme string) error {
	for _, s := range v.schemes {
		if s == scheme {
			return nil
		}
	}
	return invalidRef("URL scheme not allowed", nil)
}

func invalidRef(msg string, cause error) error {
	return apperrors.NewValidationError(msg, cause).WithGuidance(reuploadGuidance)
}
