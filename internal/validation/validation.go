/*
 * Copyright 2025 The Zync Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package validation provides the validation functions of user-provided
// values such as note keys.
package validation

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"
)

// Note keys come from URLs and client storage; unreserved URI characters
// (RFC 3986 section 2.3) keep them safe as routing keys.
const caseSensitiveSlugRegexString = `^[a-zA-Z0-9\-._~]+$`

var caseSensitiveSlugRegex = regexp.MustCompile(caseSensitiveSlugRegexString)

var (
	defaultValidator = validator.New()
	defaultEn        = en.New()
	uni              = ut.New(defaultEn, defaultEn)
	trans, _         = uni.GetTranslator("en")
)

// Violation is a single validation failure with its translated message.
type Violation struct {
	Tag         string
	Description string
}

// StructError is returned when a struct fails validation.
type StructError struct {
	Violations []Violation
}

// Error returns the string representation of this error.
func (e *StructError) Error() string {
	if len(e.Violations) == 0 {
		return "invalid value"
	}
	return e.Violations[0].Description
}

func init() {
	if err := entranslations.RegisterDefaultTranslations(defaultValidator, trans); err != nil {
		panic(err)
	}

	registerValidation("case_sensitive_slug", func(level validator.FieldLevel) bool {
		return caseSensitiveSlugRegex.MatchString(level.Field().String())
	})
	registerTranslation("case_sensitive_slug", "{0} must only contain letters, numbers, hyphen, period, underscore, and tilde")
}

func registerValidation(tag string, fn validator.Func) {
	if err := defaultValidator.RegisterValidation(tag, fn); err != nil {
		panic(err)
	}
}

func registerTranslation(tag, text string) {
	err := defaultValidator.RegisterTranslation(tag, trans, func(ut ut.Translator) error {
		return ut.Add(tag, text, true)
	}, func(ut ut.Translator, fe validator.FieldError) string {
		t, err := ut.T(tag, fe.Field())
		if err != nil {
			return fe.Error()
		}
		return t
	})
	if err != nil {
		panic(err)
	}
}

// Verify validates a single value against the given rules.
func Verify(value string, tag string) error {
	if err := defaultValidator.Var(value, tag); err != nil {
		var invalidErr *validator.InvalidValidationError
		if errors.As(err, &invalidErr) {
			return fmt.Errorf("validation: %w", err)
		}

		structErr := &StructError{}
		for _, fieldErr := range err.(validator.ValidationErrors) {
			structErr.Violations = append(structErr.Violations, Violation{
				Tag:         fieldErr.Tag(),
				Description: fieldErr.Translate(trans),
			})
		}
		return structErr
	}
	return nil
}
