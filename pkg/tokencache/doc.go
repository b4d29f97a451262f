// Package tokencache stores AGO access tokens in Redis so repeated runs can
// reuse a token until shortly before it expires.
//
// Keys are derived from the token URL, username, referer and password and
// hashed, so neither account names nor passwords appear in Redis:
//
//	manager := tokencache.NewManager(redisClient)
//	key := tokencache.Key{TokenURL: url, Username: "jdoe", Referer: "https://www.arcgis.com", Secret: password}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, tokencache.ErrCacheMiss) {
//		// request a new token, then
//		err = manager.Set(ctx, key, &tokencache.Entry{Token: tok, Expires: exp})
//	}
//
// Entries are written with a Redis TTL that ends Margin before the token
// expires. Entries whose token has already expired are never stored.
package tokencache
