//go:build !darwin

package contacts

import "context"

func defaultRunner(ctx context.Context, lines []string, args []string) (string, error) {
	_ = ctx
	_ = lines
	_ = args
	return "", ErrUnsupportedPlatform
}
