// Package jwt signs and validates the RS256 bearer tokens of the Questline
// API.
//
// # Token Generation
//
//	svc, err := jwt.NewService(jwt.Config{
//	    PrivateKeyPath: "./keys/private.pem",
//	    Issuer:         "questline.forgo.software",
//	    ExpirationMins: 15,
//	})
//	token, err := svc.Sign(jwt.Claims{UserID: userID})
//
// # Token Validation
//
// A service loaded with only the public key can validate:
//
//	claims, err := svc.Validate(token)
//	if errors.Is(err, jwt.ErrTokenExpired) {
//	    // ask the client to refresh
//	}
//	userID := claims.UserID
package jwt
