package dfs

/*------------------------------------------------------------------
 *
 * Purpose:	Announce the control socket using DNS-SD, so tools on
 *		the local network can find every access point's radar
 *		detector without being told its address.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/brutella/dnssd"
	"github.com/charmbracelet/log"
)

const DNSSDService = "_dfs-ctl._tcp"

func dnssdDefaultName() string {
	var hostname, hostnameErr = os.Hostname()
	if hostnameErr != nil {
		return "DFS radar detector"
	}

	// Some systems give a FQDN.
	hostname, _, _ = strings.Cut(hostname, ".")

	return "DFS radar detector on " + hostname
}

// AnnounceControl advertises the control socket on port until ctx is done.
func AnnounceControl(ctx context.Context, name string, port int, logger *log.Logger) error {
	if name == "" {
		name = dnssdDefaultName()
	}

	var cfg = dnssd.Config{ //nolint:exhaustruct
		Name: name,
		Type: DNSSDService,
		Port: port,
	}

	var sv, svErr = dnssd.NewService(cfg)
	if svErr != nil {
		return fmt.Errorf("DNS-SD service: %w", svErr)
	}

	var rp, rpErr = dnssd.NewResponder()
	if rpErr != nil {
		return fmt.Errorf("DNS-SD responder: %w", rpErr)
	}

	var _, addErr = rp.Add(sv)
	if addErr != nil {
		return fmt.Errorf("DNS-SD add service: %w", addErr)
	}

	logger.Info("DNS-SD announcing control socket", "name", name, "port", port)

	go func() {
		var respondErr = rp.Respond(ctx)
		if respondErr != nil && ctx.Err() == nil {
			logger.Error("DNS-SD responder", "err", respondErr)
		}
	}()

	return nil
}
