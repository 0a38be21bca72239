package constants

const USER_AGENT = "uniresolve/1.0 (+https://github.com/Amund211/uniresolve)"
