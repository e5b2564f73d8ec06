package password

import (
	"golang.org/x/crypto/bcrypt"
)

// Cost es el factor de trabajo de bcrypt. 12 es un default seguro;
// subirlo invalida benchmarks, no hashes existentes.
const Cost = 12

// Hash devuelve el hash bcrypt (variante 2b) del password en claro.
func Hash(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify compara en tiempo constante un password en claro contra su hash.
func Verify(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
