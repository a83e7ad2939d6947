package model

var Models = []interface{}{
	&IssuedToken{}, &RevokedToken{}, &Ticket{},
}
