package ami

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
)

// Login is a convenience wrapper over Publish implementing the AMI
// authentication handshake. When useMD5 is true, it first issues a
// Challenge action, then answers with the MD5 digest of the challenge
// concatenated with secret; otherwise it sends the secret in the clear.
// It returns true iff the reply's Response field equals "Success".
func Login(ctx context.Context, c *Client, username, secret string, useMD5 bool) (bool, error) {
	if useMD5 {
		return loginMD5(ctx, c, username, secret)
	}
	return loginPlain(ctx, c, username, secret)
}

func loginPlain(ctx context.Context, c *Client, username, secret string) (bool, error) {
	reply, err := c.Publish(ctx, NewMessage(
		Pair{Key: "Action", Value: "Login"},
		Pair{Key: "Username", Value: username},
		Pair{Key: "Secret", Value: secret},
	))
	if err != nil {
		return false, err
	}
	return reply.Get("Response") == "Success", nil
}

func loginMD5(ctx context.Context, c *Client, username, secret string) (bool, error) {
	challengeReply, err := c.Publish(ctx, NewMessage(
		Pair{Key: "Action", Value: "Challenge"},
		Pair{Key: "AuthType", Value: "MD5"},
	))
	if err != nil {
		return false, fmt.Errorf("ami: challenge request: %w", err)
	}
	challenge := challengeReply.Get("Challenge")

	sum := md5.Sum([]byte(challenge + secret))
	key := hex.EncodeToString(sum[:])

	reply, err := c.Publish(ctx, NewMessage(
		Pair{Key: "Action", Value: "Login"},
		Pair{Key: "AuthType", Value: "MD5"},
		Pair{Key: "Username", Value: username},
		Pair{Key: "Key", Value: key},
	))
	if err != nil {
		return false, fmt.Errorf("ami: md5 login request: %w", err)
	}
	return reply.Get("Response") == "Success", nil
}

// Logoff issues Action: Logoff and returns true iff the reply's Response
// field equals "Goodbye".
func Logoff(ctx context.Context, c *Client) (bool, error) {
	reply, err := c.Publish(ctx, NewMessage(
		Pair{Key: "Action", Value: "Logoff"},
	))
	if err != nil {
		return false, err
	}
	return reply.Get("Response") == "Goodbye", nil
}
