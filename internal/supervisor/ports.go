package supervisor

import (
	"fmt"
	"net"
	"strconv"
)

// FreePort asks the kernel for an unused TCP port on host. The port is free
// at the time of the call only; callers launch promptly.
func FreePort(host string) (int, error) {
	if host == "" {
		host = "127.0.0.1"
	}
	l, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return 0, err
	}
	defer l.Close()
	_, port, err := net.SplitHostPort(l.Addr().String())
	if err != nil {
		return 0, fmt.Errorf("unexpected addr: %s", l.Addr())
	}
	return strconv.Atoi(port)
}
