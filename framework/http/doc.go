// Package http connects the container to net/http: one Resolver per
// request, plus small request and response helpers.
//
// # Request scope
//
// Scope builds a Resolver for every request and closes it afterwards, so
// scoped services live exactly as long as the request and are closed with it.
//
//	router.Use(gohttp.Scope(c))
//
//	func show(w http.ResponseWriter, r *http.Request) {
//	    svc, err := gohttp.Resolve[*UserService](r)
//	    if err != nil {
//	        gohttp.NewResponse(w).ResolutionFailed(err, debug)
//	        return
//	    }
//	    ...
//	}
//
// Inside a scope the following are resolvable without registration:
//
//	*http.Request    the current request
//	*gohttp.Request  the same, wrapped
//	context.Context  the request context
//
// # Request
//
//	req := gohttp.NewRequest(r)
//	err := req.Bind(&payload)     // JSON body
//	id  := req.RouteParam("id")   // chi
//	tok := req.BearerToken()
//	res := req.Resolver()         // nil outside Scope
//
// # Response
//
//	res := gohttp.NewResponse(w)
//	res.Success(data)             // 200 {"data": ...}
//	res.Created(data)             // 201 {"data": ...}
//	res.NotFound()                // 404 {"message": "Not found."}
//	res.ResolutionFailed(err, true)
package http
