// Package msg91 sends SMS through the Msg91 bulk messaging gateway.
//
// Two kinds of sends are supported: an ad-hoc batch, where one or more message
// bodies go to a shared set of recipients, and a templated "flow" send, where a
// pre-registered template is filled with caller parameters.
//
// # Usage
//
//	client, err := msg91.New(msg91.Credentials{
//	    AuthKey:  "auth-key",
//	    SenderID: "SENDER",
//	    RouteID:  "4",
//	})
//	if err != nil {
//	    return err
//	}
//
//	resp, err := client.SendSMS(ctx,
//	    msg91.Delimited("919999999999, 918888888888"),
//	    msg91.List("hello", "bye"),
//	    "91",
//	)
//
// # Inputs
//
// Recipients and messages are passed as an Input built with Scalar, Delimited
// or List. List recipients are used verbatim; Delimited recipients are split on
// commas and trimmed. Message bodies from a List or Delimited input are
// right-trimmed and dropped when empty.
//
// # Errors
//
// Caller mistakes wrap ErrCallerInput and are reported before any request is
// made. Failed exchanges and undecodable replies come back as *TransportError.
// Replies the gateway marks with type "error" come back as *GatewayError
// together with the Response; a missing code is reported as DefaultErrorCode.
//
// Nothing is retried.
package msg91
