// Package decktutor provides a client for the DeckTutor card-game webservice.
//
// The webservice exposes search, account and configuration endpoints over
// plain HTTP with JSON payloads. Every method of [Client] maps to exactly one
// HTTP call.
//
// # Authentication
//
// Anonymous calls are sent unsigned. After [Client.Login] succeeds the client
// holds a session (token, secret, sequence) and signs every further request
// with three headers:
//   - x-dt-Auth-Token: the token returned by the login call
//   - x-dt-Sequence: a counter starting at 1, incremented on every signed request
//   - x-dt-Signature: hex MD5 of "<sequence>:<secret>"
//
// The service rejects a sequence it has already seen, so a session must not be
// shared between two clients. [Client.Session] and [Client.RestoreSession]
// move a session between processes.
//
// # Basic Usage
//
//	client := decktutor.NewClient(&decktutor.ClientConfig{
//	    Endpoint: decktutor.DefaultEndpoint,
//	    Game:     decktutor.GameMagic,
//	})
//
//	user, err := client.Login(ctx, "nick", "secret")
//
//	names, err := client.FindCardNames(ctx, "black lot")
//
//	versions, err := client.FindCardVersions(ctx, "Black Lotus", "", 0, 20,
//	    decktutor.Order{Column: "set"})
//
// # Error Handling
//
// Any answer other than HTTP 200 is returned as *APIError:
//
//	_, err := client.Login(ctx, "nick", "wrong")
//	var apiErr *decktutor.APIError
//	if errors.As(err, &apiErr) && apiErr.Code == decktutor.ErrCodeInvalidCredentials {
//	    // ask again
//	}
package decktutor
