package validation

import (
	"net/url"
	"strings"
)

// ValidateURL checks that a user-supplied link is an absolute http(s) URL.
// Empty values are allowed; required-ness is expressed with struct tags.
func ValidateURL(urlString, fieldName string) *FieldError {
	urlString = strings.TrimSpace(urlString)
	if urlString == "" {
		return nil
	}

	parsedURL, err := url.Parse(urlString)
	if err != nil {
		return &FieldError{Field: fieldName, Message: "invalid URL format"}
	}
	if parsedURL.Scheme == "" {
		return &FieldError{Field: fieldName, Message: "URL must include a scheme (http:// or https://)"}
	}
	if parsedURL.Host == "" {
		return &FieldError{Field: fieldName, Message: "URL must include a host"}
	}

	scheme := strings.ToLower(parsedURL.Scheme)
	if scheme != "http" && scheme != "https" {
		return &FieldError{Field: fieldName, Message: "URL scheme must be http or https"}
	}
	return nil
}

// CollectURLs validates each named URL and returns the failures, if any.
func CollectURLs(fields map[string]string) Errors {
	var errs Errors
	for name, value := range fields {
		if fe := ValidateURL(value, name); fe != nil {
			errs = append(errs, *fe)
		}
	}
	errs.Sort()
	return errs
}
