package models

import (
	"net"
	"net/url"
	"strconv"
)

// Proxy is one outbound proxy entry. FailCount is owned by the rotator.
type Proxy struct {
	Host      string `mapstructure:"host" json:"host"`
	Port      int    `mapstructure:"port" json:"port"`
	Protocol  string `mapstructure:"protocol" json:"protocol"`
	Username  string `mapstructure:"username" json:"username,omitempty"`
	Password  string `mapstructure:"password" json:"-"`
	FailCount int    `mapstructure:"-" json:"fail_count"`
}

// Address returns host:port.
func (p Proxy) Address() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

// URL returns the proxy as a URL, including credentials when both are set.
func (p Proxy) URL() *url.URL {
	scheme := p.Protocol
	if scheme == "" {
		scheme = "http"
	}
	u := &url.URL{Scheme: scheme, Host: p.Address()}
	if p.Username != "" && p.Password != "" {
		u.User = url.UserPassword(p.Username, p.Password)
	}
	return u
}

// String omits credentials.
func (p Proxy) String() string {
	scheme := p.Protocol
	if scheme == "" {
		scheme = "http"
	}
	return scheme + "://" + p.Address()
}
