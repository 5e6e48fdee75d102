package models

import "strings"

// Security is a canonical instrument record.
type Security struct {
	Name     string `json:"name"`
	ISIN     string `json:"isin,omitempty"`
	WKN      string `json:"wkn,omitempty"`
	Ticker   string `json:"ticker,omitempty"`
	Currency string `json:"currency,omitempty"`
}

// SecurityAttributes are the identity candidates a statement names.
type SecurityAttributes struct {
	ISIN             string
	WKN              string
	Ticker           string
	Name             string
	NameContinuation string
	Currency         string
}

// FullName joins name and name continuation.
func (a SecurityAttributes) FullName() string {
	name := strings.TrimSpace(a.Name)
	if c := strings.TrimSpace(a.NameContinuation); c != "" {
		name += " " + c
	}
	return name
}

// Empty reports whether no identifying attribute is set.
func (a SecurityAttributes) Empty() bool {
	return a.ISIN == "" && a.WKN == "" && a.Ticker == "" && strings.TrimSpace(a.Name) == ""
}
