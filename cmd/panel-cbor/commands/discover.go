package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/mash-protocol/mash-panel/pkg/discovery"
)

// RunDiscover browses for devices until ctx is done and prints each one as
// it answers. It returns the number of devices found.
func RunDiscover(ctx context.Context, b *discovery.Browser, w io.Writer) (int, error) {
	services, err := b.Browse(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for svc := range services {
		formatService(w, svc)
		count++
	}
	return count, nil
}

// ResolveDevice finds the device with the given serial and returns its
// base URL.
func ResolveDevice(ctx context.Context, b *discovery.Browser, serial string) (string, error) {
	svc, err := b.Find(ctx, serial)
	if err != nil {
		return "", err
	}
	return svc.BaseURL()
}

func formatService(w io.Writer, svc *discovery.Service) {
	fmt.Fprintf(w, "%s\n", svc.InstanceName)
	fmt.Fprintf(w, "  Serial: %s\n", svc.Serial)
	if svc.Model != "" {
		fmt.Fprintf(w, "  Model: %s\n", svc.Model)
	}
	if url, err := svc.APIURL(); err == nil {
		fmt.Fprintf(w, "  API: %s\n", url)
	} else {
		fmt.Fprintf(w, "  Host: %s port %d\n", svc.Host, svc.Port)
	}
	if len(svc.Addresses) > 1 {
		fmt.Fprintf(w, "  Addresses: %s\n", strings.Join(svc.Addresses, ", "))
	}
	fmt.Fprintf(w, "  Auth: %s\n", svc.Auth)
}
