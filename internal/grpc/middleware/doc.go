// Package middleware provides gRPC server interceptors that run the
// gate's authentication and authorization pipeline, for embedding into
// gRPC servers that sit behind the same rule table as the HTTP proxy.
//
// The interceptors extract the bearer credential from incoming
// metadata, validate it through the configured validator chain, and
// authorize the full method name ("/pkg.Service/Method") against the
// rule table. Denied calls abort with codes.Unauthenticated or
// codes.PermissionDenied; admitted calls run the handler with the
// principal attached to the context.
//
// Example usage:
//
//	srv := grpc.NewServer(
//	    grpc.ChainUnaryInterceptor(
//	        middleware.UnaryServerInterceptor(authn, engine),
//	    ),
//	    grpc.ChainStreamInterceptor(
//	        middleware.StreamServerInterceptor(authn, engine),
//	    ),
//	)
//
// Rule patterns match the full method: a rule for "/echo.Echo/Ping"
// admits that method, and "/admin.Admin/**" covers a whole service.
// Expression policies see the full method as the request path and an
// empty method string.
package middleware
