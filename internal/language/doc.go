// Package language normalizes the language hints accepted by the
// recognition backends and the language codes they report back.
//
// A small built-in table covers the common ISO 639-1/639-2 codes and English
// names; anything else is resolved through golang.org/x/text/language so
// BCP 47 tags such as "pt-BR" reduce to their base language.
package language
