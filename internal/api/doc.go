// Package api exposes the gallery over HTTP: account and two-factor
// endpoints, the artwork and exhibition catalog, orders and tickets, and the
// M-Pesa payment routes. Access policy lives in the auth and gallery
// packages; handlers here only decode requests, call the services and render
// JSON.
package api
