package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/tidwall/sjson"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/niksrid/sendsms-go/internal/logger"
	"github.com/niksrid/sendsms-go/pkg/msg91"
)

func main() {
	app := kingpin.New("sendsms", "Send SMS through the Msg91 gateway")

	authKey := app.Flag("auth-key", "Msg91 auth key").Envar("MSG91_AUTH_KEY").Short('k').Required().String()
	sender := app.Flag("sender", "Sender id").Envar("MSG91_SENDER_ID").Short('s').String()
	route := app.Flag("route", "Route id").Envar("MSG91_ROUTE_ID").Default("4").String()
	baseURL := app.Flag("base-url", "Gateway base URL").Envar("MSG91_BASE_URL").Default(msg91.DefaultBaseURL).String()
	timeout := app.Flag("timeout", "Per-request timeout, 0 disables it").Default(msg91.DefaultTimeout.String()).Duration()

	verbose := app.Flag("verbose", "Enables debug logging").Short('v').Bool()
	pretty := app.Flag("pretty", "Enables pretty logging").Short('p').Bool()

	batch := app.Command("batch", "Send one or more messages to a set of recipients")
	batchTo := batch.Flag("to", "Recipient number, repeatable").Short('t').Required().Strings()
	batchMessages := batch.Flag("message", "Message body, repeatable").Short('m').Required().Strings()
	batchDelimited := batch.Flag("delimited", "Split a single --to or --message value on commas").Short('d').Bool()
	batchCountry := batch.Flag("country", "Country dial code").Envar("MSG91_DEFAULT_COUNTRY").Short('c').String()

	flow := app.Command("flow", "Send a pre-registered flow template")
	flowTo := flow.Flag("to", "Recipient number").Short('t').Required().String()
	flowID := flow.Flag("flow-id", "Flow template id").Short('f').Required().String()
	flowParams := flow.Flag("param", "Template variable as key=value, repeatable").StringMap()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	log := logger.NewCLI(os.Stderr, *verbose, *pretty)

	client, err := msg91.New(
		msg91.Credentials{AuthKey: *authKey, SenderID: *sender, RouteID: *route},
		msg91.WithBaseURL(*baseURL),
		msg91.WithTimeout(*timeout),
		msg91.WithLogger(log),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing client.")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var resp *msg91.Response
	switch command {
	case batch.FullCommand():
		resp, err = client.SendSMS(ctx,
			inputFor(*batchTo, *batchDelimited),
			inputFor(*batchMessages, *batchDelimited),
			*batchCountry,
		)
	case flow.FullCommand():
		var params []byte
		params, err = flowRecipients(*flowTo, *flowParams)
		if err == nil {
			resp, err = client.SendSMSFlow(ctx, *flowTo, *flowID, json.RawMessage(params))
		}
	}

	os.Exit(report(os.Stdout, os.Stderr, resp, err))
}

// inputFor picks the Input shape for repeatable flag values: one value is a
// scalar (or delimited when asked), several are a list.
func inputFor(values []string, delimited bool) msg91.Input {
	switch {
	case len(values) == 0:
		return msg91.Input{}
	case len(values) > 1:
		return msg91.List(values...)
	case delimited:
		return msg91.Delimited(values[0])
	default:
		return msg91.Scalar(values[0])
	}
}

var pathEscaper = strings.NewReplacer(".", `\.`, "*", `\*`, "?", `\?`)

// flowRecipients builds the flow "recipients" array: one entry for the
// recipient carrying the template variables.
func flowRecipients(to string, params map[string]string) ([]byte, error) {
	raw, err := sjson.SetBytes([]byte(`[]`), "0.mobiles", to)
	if err != nil {
		return nil, err
	}
	for key, value := range params {
		if key == "" {
			return nil, errors.New("param key cannot be empty")
		}
		if raw, err = sjson.SetBytes(raw, "0."+pathEscaper.Replace(key), value); err != nil {
			return nil, fmt.Errorf("param %q: %w", key, err)
		}
	}
	return raw, nil
}

// report prints the gateway reply to out and any error to errOut. The exit code
// is 2 for bad input, 3 for a gateway rejection, 4 for a timeout and 1 for
// anything else.
func report(out, errOut io.Writer, resp *msg91.Response, err error) int {
	if resp != nil {
		fmt.Fprintln(out, string(resp.Raw()))
	}
	if err == nil {
		return 0
	}

	fmt.Fprintln(errOut, "sendsms:", err)
	var gwErr *msg91.GatewayError
	switch {
	case errors.Is(err, msg91.ErrCallerInput):
		return 2
	case errors.As(err, &gwErr):
		return 3
	case errors.Is(err, context.DeadlineExceeded):
		return 4
	default:
		return 1
	}
}
