// Command example is an interactive CLI exercising the ami client against
// a live Asterisk Manager Interface endpoint.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net"

	"github.com/MykytaPozdiakov/AmiClient"
)

var (
	host, user, password string
	port                 int
	useMD5               bool
)

func init() {
	flag.IntVar(&port, "port", 5038, "AMI port")
	flag.StringVar(&host, "host", "localhost", "AMI host")
	flag.StringVar(&user, "user", "admin", "AMI user")
	flag.StringVar(&password, "password", "admin", "AMI secret")
	flag.BoolVar(&useMD5, "md5", false, "use MD5 challenge-response login")
	flag.Parse()
}

func main() {
	conn, err := net.Dial("tcp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		log.Fatal(err)
	}

	c := ami.New(conn, ami.WithRawObserver(func(dir string, b []byte) {
		slog.Debug(dir, "bytes", string(b))
	}))
	defer c.Dispose()

	ctx := context.Background()
	ok, err := ami.Login(ctx, c, user, password, useMD5)
	if err != nil {
		log.Fatal(err)
	}
	if !ok {
		log.Fatal("login rejected")
	}

	sub := c.Subscribe(func(m *ami.Message) {
		fmt.Printf("event: %s %v\n", m.Get("Event"), m.Pairs())
	})
	defer sub.Unsubscribe()

	var cmd string
	for {
		printMenu()
		if _, err := fmt.Scanf("%s\n", &cmd); err != nil {
			break
		}
		switch cmd {
		case "q":
			goto done
		case "p":
			ping(ctx, c)
		case "o":
			originate(ctx, c)
		default:
			printMenu()
		}
	}
done:
	if ok, err := ami.Logoff(ctx, c); err != nil || !ok {
		log.Println("logoff:", ok, err)
	}
}

func ping(ctx context.Context, c *ami.Client) {
	reply, err := c.Publish(ctx, ami.NewMessage(ami.Pair{Key: "Action", Value: "Ping"}))
	if err != nil {
		log.Println("ping:", err)
		return
	}
	fmt.Println(reply.Pairs())
}

func originate(ctx context.Context, c *ami.Client) {
	fmt.Println("Enter channel: ")
	var ch string
	fmt.Scanf("%s\n", &ch)

	reply, err := c.Publish(ctx, ami.NewMessage(
		ami.Pair{Key: "Action", Value: "Originate"},
		ami.Pair{Key: "Channel", Value: ch},
		ami.Pair{Key: "Application", Value: "Playback"},
		ami.Pair{Key: "Data", Value: "hello-world"},
	))
	if err != nil {
		log.Println("originate:", err)
		return
	}
	fmt.Println(reply.Pairs())
}

func printMenu() {
	fmt.Println("Usage:")
	fmt.Println(" o -> originate to channel")
	fmt.Println(" p -> ping")
	fmt.Println(" q -> quit")
}
