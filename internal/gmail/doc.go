// Package gmail sends lead emails through the Gmail API.
//
// The client only needs the gmail.send scope. Messages are built in
// RFC 2822 format with RFC 2047 encoded subjects, so non-ASCII names and
// subjects survive the trip.
//
// Example usage:
//
//	httpClient, err := store.HTTPClient(ctx, "default")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client, err := gmail.NewClient(ctx, []option.ClientOption{option.WithHTTPClient(httpClient)},
//	    gmail.WithFrom("agent@example.com"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := client.Send(ctx, "lead@example.com", "Welcome", "Hi!"); err != nil {
//	    var sendErr *gmail.SendError
//	    if errors.As(err, &sendErr) {
//	        log.Printf("could not reach %s", sendErr.To)
//	    }
//	}
package gmail
