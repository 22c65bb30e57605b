package guard

import "errors"

var (
	ErrNFTablesConn  = errors.New("nftables connection failed")
	ErrNFTablesApply = errors.New("nftables apply failed")
	ErrInterface     = errors.New("interface lookup failed")
)
