/*
Package config parses deployment configuration files into model values.

A configuration file declares applications once and assigns them to nodes by
name:

	version: 1
	applications:
	  web:
	    image: nginx:1.25
	    ports:
	      - "8080:80"
	  database:
	    image: postgres:16
	    volume:
	      dataset_id: 5e9679b2-8b3c-4a8f-9a68-3be4a1c3bd90
	      mountpoint: /var/lib/postgresql/data
	      maximum_size: 107374182400
	    restart_policy:
	      condition: on-failure
	      maximum_retry_count: 3
	nodes:
	  node1.example.com: [web]
	  node2.example.com: [database]

Parsing rejects unknown fields, validates the schema, and assembles the
result through the model constructors, so a successfully parsed file always
yields a structurally valid Deployment. A volume without a dataset_id gets a
generated id; the parser remembers generated ids by application name, so
reparsing (for example on a watched-file reload) keeps them stable for its
lifetime. Pin the id in the file to keep it stable across process restarts.
*/
package config
