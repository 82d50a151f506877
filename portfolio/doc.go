// Package portfolio is the read-only content source the assistant answers
// from: the site owner's home, about, skills and work sections.
//
// Content lives in a gorm-managed database (sqlite by default) and is served
// as JSON by a small gin API. The assistant does not read the database
// directly; it calls the API through Client, wrapped as tools (see Tools),
// so the bot can also be pointed at a remotely hosted portfolio.
package portfolio
