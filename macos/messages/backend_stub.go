//go:build !darwin

package messages

import "context"

func defaultRunner(ctx context.Context, lines []string, args []string) (string, error) {
	_ = ctx
	_ = lines
	_ = args
	return "", ErrUnsupportedPlatform
}
