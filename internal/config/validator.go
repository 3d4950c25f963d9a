package config

import (
	"fmt"
	"os"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
)

var (
	// OSM keys end up inside Overpass QL filters, so quotes and brackets are rejected.
	osmKeyPattern    = regexp.MustCompile(`^[a-z][a-z0-9_:]*$`)
	symbolSetPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)
)

type rule struct {
	tag     string
	fn      validator.Func
	message string
}

var rules = []rule{
	{tag: "file", fn: isFileReadable, message: "{0} must be an existing and readable file"},
	{tag: "osm_key", fn: matches(osmKeyPattern), message: "{0} must be a lowercase OpenStreetMap key such as amenity or shop"},
	{tag: "symbol_set", fn: matches(symbolSetPattern), message: "{0} must be a symbol set slug such as arasaac"},
}

func newValidator() (*validator.Validate, ut.Translator, error) {
	validate := validator.New()

	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	trans, _ := uni.GetTranslator("en")
	if err := enTranslations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, nil, fmt.Errorf("failed to register default translations: %w", err)
	}

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	for _, r := range rules {
		if err := registerRule(validate, trans, r); err != nil {
			return nil, nil, err
		}
	}
	return validate, trans, nil
}

func registerRule(validate *validator.Validate, trans ut.Translator, r rule) error {
	if err := validate.RegisterValidation(r.tag, r.fn); err != nil {
		return fmt.Errorf("failed to register %s validation: %w", r.tag, err)
	}
	if err := validate.RegisterTranslation(r.tag, trans, func(ut ut.Translator) error {
		return ut.Add(r.tag, r.message, true)
	}, func(ut ut.Translator, fe validator.FieldError) string {
		t, _ := ut.T(r.tag, strings.TrimPrefix(fe.Namespace(), "Config."))
		return t
	}); err != nil {
		return fmt.Errorf("failed to register %s translation: %w", r.tag, err)
	}
	return nil
}

func matches(pattern *regexp.Regexp) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return pattern.MatchString(fl.Field().String())
	}
}

func isFileReadable(fl validator.FieldLevel) bool {
	path := fl.Field().String()
	if path == "" {
		return false
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	// Owner read bit
	return info.Mode().Perm()&0400 != 0
}
