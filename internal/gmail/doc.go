// Package gmail is the mail gateway of the triage pipeline. It enumerates
// message ids for a search query, fetches the metadata needed to classify a
// message, makes sure the triage labels exist and applies them.
//
// All calls go through one rate limiter and are recorded as
// google_api_* metrics and client spans. Listing pages are retried with
// exponential backoff on rate-limit and server errors.
//
//	httpClient, err := google.HTTPClient(ctx, conf, store)
//	if err != nil {
//	    return err
//	}
//	client, err := gmail.NewClient(ctx, httpClient, gmail.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	ids, err := client.ListMessageIDs(ctx, "is:unread")
package gmail
