// Package providers contains built-in provider implementations and factories.
//
// OAuth2Provider redeems authorization codes through golang.org/x/oauth2 and
// forwards the handshake verifier with every exchange. Presets under github,
// google and plaid wrap it with provider defaults.
package providers
