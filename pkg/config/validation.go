package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// This function uses go-playground/validator for declarative validation
// via struct tags, with additional custom validation for rules that cannot
// be expressed in tags.
//
// Note: Log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
//
// Returns an error describing validation failures.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	return validateCustomRules(cfg)
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	// A static auth provider with no tokens locks every client out of
	// authenticated access; catch the misconfiguration at startup
	if cfg.Auth.Type == "static" && len(cfg.Auth.Tokens) == 0 {
		return fmt.Errorf("auth: type is \"static\" but no tokens are configured")
	}

	if cfg.Content.Type == "s3" {
		if cfg.Content.S3 == nil {
			return fmt.Errorf("content: type is \"s3\" but the s3 section is missing")
		}
		if bucket, _ := cfg.Content.S3["bucket"].(string); bucket == "" {
			return fmt.Errorf("content.s3: bucket is required")
		}
	}

	if cfg.Directory.Type == "badger" {
		if path, _ := cfg.Directory.Badger["path"].(string); path == "" {
			return fmt.Errorf("directory.badger: path is required")
		}
	}

	// Role names travel inside the address grammar; reserved delimiters
	// would make the ACL entry forms unaddressable
	for i, role := range cfg.Directory.RootOwner {
		if role == "" {
			return fmt.Errorf("directory.root_owner[%d]: role must not be empty", i)
		}
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
