package google

import gmail "google.golang.org/api/gmail/v1"

// DefaultOAuthScopes are the scopes inboxtriage requests. gmail.modify covers
// listing and reading messages, creating labels and changing message labels;
// it does not allow permanent deletion or sending.
var DefaultOAuthScopes = []string{
	gmail.GmailModifyScope,
}
