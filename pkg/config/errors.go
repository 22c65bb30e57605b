package config

import "errors"

var (
	ErrConfigRead          = errors.New("reading config file")
	ErrConfigParse         = errors.New("parsing config file")
	ErrNoPortSelected      = errors.New("port-mask selects no port")
	ErrNoPublicIPs         = errors.New("no public IPs configured")
	ErrTooManyPublicIPs    = errors.New("too many public IPs configured")
	ErrInvalidPublicIP     = errors.New("invalid public IP")
	ErrInvalidCustomerCIDR = errors.New("invalid customer CIDR")
)
