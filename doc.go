/*
Package ami implements a multiplexing client for the Asterisk Manager
Interface (AMI): a line-oriented, text-based, full-duplex TCP protocol
used to control and observe an Asterisk telephony server.

The client turns a single bidirectional byte stream into two logically
independent surfaces, both served off one shared reader goroutine:

  - Request/reply: callers submit an action and await the matching
    reply, with many calls in flight concurrently.
  - Event stream: unsolicited server-originated messages (and solicited
    follow-up events sharing an ActionID with a prior action) are
    delivered to any number of subscribers.

Connecting and logging in:

	conn, err := net.Dial("tcp", "astserver:5038")
	if err != nil {
		log.Fatal(err)
	}

	c := ami.New(conn)
	defer c.Dispose()

	ok, err := ami.Login(context.Background(), c, "admin", "secret", false)
	if err != nil || !ok {
		log.Fatal("login failed: ", err)
	}

Sending an action and reading the reply:

	reply, err := c.Publish(ctx, ami.NewMessage(
		ami.Pair{Key: "Action", Value: "Ping"},
	))

Subscribing to events:

	sub := c.Subscribe(func(m *ami.Message) {
		if m.Get("Event") == "FullyBooted" {
			fmt.Println("asterisk is ready")
		}
	})
	defer sub.Unsubscribe()

This package does not dial connections, retry, or reconnect — it
accepts an already-opened stream and is terminal once that stream
closes or errors (see Client.Err).
*/
package ami
