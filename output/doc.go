/*
Package output writes the found subdomains and their addresses to results
files, either as JSON, as plain text with one name per line, or as CSV.

The field names “name” and “ips” as well as joining multiple IP addresses
with commas within a single CSV cell are part of the results file contract.
*/
package output
