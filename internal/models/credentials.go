package models

import (
	"net"
	"strconv"
	"strings"
)

// Credentials is everything needed to open a mail session for one account.
// It travels inside the bearer token and is never stored server-side.
type Credentials struct {
	Address string `json:"email"`
	Secret  string `json:"password"`
	Host    string `json:"host,omitempty"`
	Port    int    `json:"port,omitempty"`
	UseTLS  bool   `json:"secure"`
}

// Domain returns the part of the address after the @, or "" if there is none.
func (c Credentials) Domain() string {
	at := strings.LastIndex(c.Address, "@")
	if at < 0 {
		return ""
	}
	return c.Address[at+1:]
}

// IMAPAddress returns host:port for the IMAP server. The port defaults to 993
// with implicit TLS and 143 otherwise.
func (c Credentials) IMAPAddress() string {
	port := c.Port
	if port == 0 {
		port = 143
		if c.UseTLS {
			port = 993
		}
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}
