package autoslug

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"gorm.io/gorm/schema"

	"autoslug/app/internal/slug"
)

// TagName is the struct tag key that marks a string column as an auto slug.
const TagName = "autoslug"

// Field is the configuration carried by an autoslug struct tag.
type Field struct {
	// PopulateFrom names the fields (Go or column names) the slug is derived from.
	PopulateFrom []string
	Separator    string
	// MaxLength caps the slug in runes, suffix included. Zero means unlimited.
	MaxLength int
	// Overwrite recomputes the slug on every save instead of only when it is empty.
	Overwrite bool
	// AllowDuplicates skips the uniqueness lookup.
	AllowDuplicates bool
}

// ParseTag reads a tag such as "populate_from:Title;separator:_;max_length:50".
func ParseTag(tag string) (Field, error) {
	field := Field{Separator: slug.DefaultSeparator}

	for key, value := range schema.ParseTagSetting(tag, ";") {
		switch key {
		case "POPULATE_FROM":
			for _, name := range strings.Split(value, ",") {
				if trimmed := strings.TrimSpace(name); trimmed != "" {
					field.PopulateFrom = append(field.PopulateFrom, trimmed)
				}
			}
		case "SEPARATOR":
			if value == "" || value == key {
				return Field{}, eris.New("separator requires a value")
			}
			field.Separator = value
		case "MAX_LENGTH":
			n, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				return Field{}, eris.Wrapf(err, "invalid max_length value: %s", value)
			}
			if n < 0 {
				return Field{}, eris.Errorf("max_length must not be negative, got %d", n)
			}
			field.MaxLength = n
		case "OVERWRITE":
			field.Overwrite = true
		case "ALLOW_DUPLICATES":
			field.AllowDuplicates = true
		default:
			return Field{}, eris.Errorf("unknown autoslug setting: %s", strings.ToLower(key))
		}
	}

	if len(field.PopulateFrom) == 0 {
		return Field{}, eris.New("populate_from is required")
	}
	if minimum := len([]rune(field.Separator)) + 1; field.MaxLength > 0 && field.MaxLength < minimum {
		return Field{}, eris.Errorf("max_length %d cannot hold a separator and suffix, need at least %d", field.MaxLength, minimum)
	}

	return field, nil
}

// Tag renders the field back into the tag syntax accepted by ParseTag.
func (f Field) Tag() string {
	parts := []string{"populate_from:" + strings.Join(f.PopulateFrom, ",")}

	if sep := f.separator(); sep != slug.DefaultSeparator {
		parts = append(parts, "separator:"+strings.ReplaceAll(sep, ";", `\;`))
	}
	if f.MaxLength > 0 {
		parts = append(parts, "max_length:"+strconv.Itoa(f.MaxLength))
	}
	if f.Overwrite {
		parts = append(parts, "overwrite")
	}
	if f.AllowDuplicates {
		parts = append(parts, "allow_duplicates")
	}

	return strings.Join(parts, ";")
}

func (f Field) separator() string {
	if f.Separator == "" {
		return slug.DefaultSeparator
	}
	return f.Separator
}

// candidate returns base with the numeric suffix n, shortening base so the
// result stays within MaxLength. It reports false once the suffix alone no
// longer fits.
func (f Field) candidate(base string, n int) (string, bool) {
	sep := f.separator()
	end := sep + strconv.Itoa(n)

	if f.MaxLength > 0 {
		room := f.MaxLength - len([]rune(end))
		switch {
		case room < 0:
			return "", false
		case room == 0:
			base = ""
		case len([]rune(base)) > room:
			base = slug.TrimSeparator(string([]rune(base)[:room]), sep)
		}
	}

	return base + end, true
}
