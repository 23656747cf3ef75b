package content

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/dshills/memex-mcp/pkg/types"
)

const (
	MaxTitleBytes   = 200
	MaxContentBytes = 1 << 20
)

var (
	titlePattern = regexp.MustCompile(`^[A-Za-z0-9 _-]+$`)
	slugPattern  = regexp.MustCompile(`^[a-z0-9-]+$`)
)

// ValidateTitle checks a document title
func ValidateTitle(title string) error {
	title = strings.TrimSpace(title)
	switch {
	case title == "":
		return fmt.Errorf("%w: title is required", types.ErrValidation)
	case len(title) > MaxTitleBytes:
		return fmt.Errorf("%w: title exceeds %d bytes", types.ErrValidation, MaxTitleBytes)
	case !titlePattern.MatchString(title):
		return fmt.Errorf("%w: title may only contain letters, digits, spaces, '-' and '_'", types.ErrValidation)
	}
	return nil
}

// ValidateContent checks a document body
func ValidateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: content is required", types.ErrValidation)
	}
	if len(content) > MaxContentBytes {
		return fmt.Errorf("%w: content exceeds %d bytes", types.ErrValidation, MaxContentBytes)
	}
	return nil
}

// ValidateUUID accepts only RFC 4122 version 4 UUIDs
func ValidateUUID(s string) error {
	id, err := uuid.Parse(s)
	if err != nil || len(s) != 36 {
		return fmt.Errorf("%w: %q is not a valid uuid", types.ErrValidation, s)
	}
	if id.Version() != 4 || id.Variant() != uuid.RFC4122 {
		return fmt.Errorf("%w: %q is not a version 4 uuid", types.ErrValidation, s)
	}
	return nil
}

// ValidateTags rejects tags that would break the frontmatter list syntax
func ValidateTags(tags []string) error {
	for _, tag := range tags {
		if strings.TrimSpace(tag) == "" {
			return fmt.Errorf("%w: tags cannot be empty", types.ErrValidation)
		}
		if strings.ContainsAny(tag, ",[]\n\r") {
			return fmt.Errorf("%w: tag %q contains a forbidden character", types.ErrValidation, tag)
		}
	}
	return nil
}

// ValidateSlug checks a slug supplied for deletion. Anything that could
// escape the collection directory is reported as path traversal.
func ValidateSlug(slug string) error {
	if strings.Contains(slug, "..") || strings.ContainsAny(slug, `/\`) {
		return fmt.Errorf("%w: %q", types.ErrPathTraversal, slug)
	}
	if !slugPattern.MatchString(slug) {
		return fmt.Errorf("%w: slug %q must match [a-z0-9-]+", types.ErrValidation, slug)
	}
	return nil
}

// NewUUID returns a random version 4 uuid
func NewUUID() string {
	return uuid.NewString()
}
