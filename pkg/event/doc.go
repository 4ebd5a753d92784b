// Package event はプッシュ配信に関するドメインイベントの型とEvent Storeへの送信を提供する。
package event
