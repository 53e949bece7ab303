// Package mock provides test doubles for ndchat interfaces using function fields.
package mock
